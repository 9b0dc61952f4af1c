// internal/pricefeed/tokens.go
package pricefeed

import "github.com/jason-s-yu/tokenrivals/internal/models"

// DefaultTokens is the token universe players draft from, with their Pyth feed ids.
var DefaultTokens = []models.Token{
	{Symbol: "BTC", Name: "Bitcoin", PriceFeedID: "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"},
	{Symbol: "ETH", Name: "Ethereum", PriceFeedID: "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"},
	{Symbol: "SOL", Name: "Solana", PriceFeedID: "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"},
	{Symbol: "UNI", Name: "Uniswap", PriceFeedID: "0x78d185a741d07edb3412b09008b7c5cfb9bbbd7d568bf00ba737b456ba171501"},
	{Symbol: "OP", Name: "Optimism", PriceFeedID: "0x385f64d993f7b77d8182ed5003d97c60aa3361f3cecfe711544d2d59165e9bdf"},
	{Symbol: "ARB", Name: "Arbitrum", PriceFeedID: "0x3fa4252848f9f0a1480be62745a4629d9eb1322aebab8a791e344b3b9c1adcf5"},
	{Symbol: "ATOM", Name: "Cosmos", PriceFeedID: "0xb00b60f88b03a6a625a8d1c048c3f66653edf217439983d037e7222c4e612819"},
	{Symbol: "APT", Name: "Aptos", PriceFeedID: "0x03ae4db29ed4ae33d323568895aa00337e658e348b37509f5372ae51f0af00d5"},
	{Symbol: "SUI", Name: "Sui", PriceFeedID: "0x23d7315113f5b1d3ba7a83604c44b94d79f4fd69af77f804fc7f920a6dc65744"},
	{Symbol: "PYTH", Name: "Pyth Network", PriceFeedID: "0x0bbf28e9a841a1cc788f6a361b17ca072d0ea3098a1e5df1c3922d06719579ff"},
	{Symbol: "HYPE", Name: "Hyperliquid", PriceFeedID: "0x4279e31cc369bbcc2faf022b382b080e32a8e689ff20fbc530d2a603eb6cd98b"},
	{Symbol: "USDC", Name: "USD Coin", PriceFeedID: "0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a"},
	{Symbol: "STETH", Name: "Lido Staked ETH", PriceFeedID: "0x846ae1bdb6300b817cee5fdee2a6da192775030db5615b94a465f53bd40850b5"},
}

// TokenBySymbol looks a token up in DefaultTokens.
func TokenBySymbol(symbol string) (models.Token, bool) {
	for _, t := range DefaultTokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return models.Token{}, false
}
