package config

import "github.com/crypto-tracker/internal/types"

// AssetSpec seeds one asset and its per-network contract addresses.
// Name is the price API identifier. An empty address marks the
// network's native coin; networks the asset does not exist on are
// simply absent.
type AssetSpec struct {
	Name      string                   `json:"name"`
	Symbol    string                   `json:"symbol"`
	Addresses map[types.ChainID]string `json:"addresses"`
}

// DefaultAssetCatalog returns the compiled-in asset catalog the
// database is seeded with. Collectors may reference any of these by
// symbol; assets discovered later (lending reserves) are matched
// against what is already seeded.
func DefaultAssetCatalog() []AssetSpec {
	return []AssetSpec{
		{
			Name: "ethereum", Symbol: "ETH",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "",
				types.ChainArbitrum: "",
				types.ChainBase:     "",
			},
		},
		{
			Name: "gnosis", Symbol: "GNO",
			Addresses: map[types.ChainID]string{
				types.ChainGnosis:   "0x9c58bacc331c9aa871afd802db6379a98e80cedb",
				types.ChainEthereum: "0x6810e776880c02933d47db1b9fc05908e5386b96",
				types.ChainArbitrum: "0xa0b862f60edef4452f25b4160f177db44deb6cf1",
			},
		},
		{
			Name: "avalanche-2", Symbol: "AVAX",
			Addresses: map[types.ChainID]string{
				types.ChainAvalanche: "",
			},
		},
		{
			Name: "liquity", Symbol: "LQTY",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "0x6DEA81C8171D0bA574754EF6F8b412F2Ed88c54D",
				types.ChainArbitrum: "0xfb9e5d956d889d91a82737b9bfcdac1dce3e1449",
			},
		},
		{
			Name: "ssv-network", Symbol: "SSV",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "0x9D65fF81a3c488d585bBfb0Bfe3c7707c7917f54",
			},
		},
		{
			Name: "balancer", Symbol: "BAL",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum:  "0xba100000625a3754423978a60c9317c58a424e3d",
				types.ChainAvalanche: "0xe15bcb9e0ea69e6ab9fa080c4c4a5632896298c3",
				types.ChainArbitrum:  "0x040d1edc9569d4bab2d15287dc5a4f10f56a56b8",
				types.ChainGnosis:    "0x7ef541e2a22058048904fe5744f9c7e4c57af717",
				types.ChainBase:      "0x4158734d47fc9692176b5085e0f52ee0da5d47f1",
			},
		},
		{
			Name: "liquity-usd", Symbol: "LUSD",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "0x5f98805a4e8be255a32880fdec7f6728c6568ba0",
				types.ChainArbitrum: "0x93b346b6bc2548da6a1e7d98e9a421b42541425b",
				types.ChainBase:     "0x368181499736d0c0cc614dbb145e2ec1ac86b8c6",
			},
		},
		{
			Name: "safe", Symbol: "SAFE",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "0x5afe3855358e112b5647b952709e6165e1c1eeee",
				types.ChainGnosis:   "0x4d18815d14fe5c3304e87b3fa18318baa5c23820",
			},
		},
		{
			Name: "arbitrum", Symbol: "ARB",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "0xb50721bcf8d664c30412cfbc6cf7a15145234ad1",
				types.ChainArbitrum: "0x912ce59144191c1204e64559fe8253a0e49e6548",
			},
		},
		{
			Name: "liquity-bold-2", Symbol: "BOLD",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "0x6440f144b7e50D6a8439336510312d2F54beB01D",
			},
		},
		{
			Name: "weth", Symbol: "WETH",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
				types.ChainArbitrum: "0x82af49447d8a07e3bd95bd0d56f35241523fbab1",
			},
		},
		{
			Name: "wrapped-steth", Symbol: "wstETH",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "0x7f39c581f595b53c5cb19bd0b3f8da6c935e2ca0",
			},
		},
		{
			Name: "rocket-pool-eth", Symbol: "rETH",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum: "0xae78736cd615f374d3085123a210448e74fc6393",
			},
		},
		{
			Name: "usd-coin", Symbol: "USDC",
			Addresses: map[types.ChainID]string{
				types.ChainEthereum:  "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
				types.ChainAvalanche: "0xb97ef9ef8734c71904d8002f8b6bc66dd9c48a6e",
				types.ChainArbitrum:  "0xaf88d065e77c8cc2239327c5edb3a432268e5831",
				types.ChainBase:      "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
			},
		},
	}
}
