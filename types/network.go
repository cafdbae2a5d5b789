package types

// Network represents supported settlement networks
type Network string

const (
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet
	NetworkBaseSepolia Network = "base-sepolia" // testnet
	NetworkBase        Network = "base"
)

var chainIDs = map[Network]int64{
	NetworkPolygon:     137,
	NetworkPolygonAmoy: 80002,
	NetworkBase:        8453,
	NetworkBaseSepolia: 84532,
}

// ChainID returns the EVM chain id for the network.
func (n Network) ChainID() (int64, bool) {
	id, ok := chainIDs[n]
	return id, ok
}

func (n Network) IsSupported() bool {
	_, ok := chainIDs[n]
	return ok
}

func (n Network) IsTestnet() bool {
	return n == NetworkPolygonAmoy || n == NetworkBaseSepolia
}

func (n Network) String() string {
	return string(n)
}
