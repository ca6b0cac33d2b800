package model

// Position is a liquidity position NFT held through the router.
type Position struct {
	TokenID     string `json:"token_id"`
	Token0      string `json:"token0,omitempty"`
	Token1      string `json:"token1,omitempty"`
	Liquidity   string `json:"liquidity"`
	TokensOwed0 string `json:"tokens_owed0"`
	TokensOwed1 string `json:"tokens_owed1"`
}
