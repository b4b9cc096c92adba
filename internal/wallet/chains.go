package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mtecstake/autostake/pkg/types"
	"gopkg.in/yaml.v3"
)

// chainsFile is dot-prefixed so the keystore scanner skips it
const chainsFile = ".chains.yaml"

type chainState struct {
	Active uint64                    `yaml:"active"`
	Chains []types.NetworkDescriptor `yaml:"chains"`
}

// chainRegistry is the set of networks the wallet knows plus the active one.
// An empty path keeps it in memory only.
type chainRegistry struct {
	mu    sync.RWMutex
	path  string
	state chainState
}

func ethereumMainnet() types.NetworkDescriptor {
	return types.NetworkDescriptor{
		ChainID:           1,
		ChainName:         "Ethereum Mainnet",
		RPCURLs:           []string{"https://cloudflare-eth.com"},
		NativeCurrency:    types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		BlockExplorerURLs: []string{"https://etherscan.io"},
	}
}

// loadChainRegistry reads dir/.chains.yaml, seeding it with initial when absent
func loadChainRegistry(dir string, initial uint64) (*chainRegistry, error) {
	r := &chainRegistry{}
	if dir != "" {
		r.path = filepath.Join(dir, chainsFile)
	}

	if r.path != "" {
		data, err := os.ReadFile(r.path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &r.state); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", r.path, err)
			}
			return r, nil
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read %s: %w", r.path, err)
		}
	}

	if initial == 0 {
		initial = 1
	}
	r.state.Chains = []types.NetworkDescriptor{ethereumMainnet()}
	if initial != 1 {
		r.state.Chains = append(r.state.Chains, types.NetworkDescriptor{ChainID: initial, ChainName: fmt.Sprintf("Chain %d", initial)})
	}
	r.state.Active = initial
	return r, r.save()
}

func (r *chainRegistry) active() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Active
}

func (r *chainRegistry) known(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.state.Chains {
		if c.ChainID == id {
			return true
		}
	}
	return false
}

func (r *chainRegistry) setActive(id uint64) error {
	r.mu.Lock()
	r.state.Active = id
	r.mu.Unlock()
	return r.save()
}

// add inserts or replaces the descriptor for desc.ChainID
func (r *chainRegistry) add(desc types.NetworkDescriptor) error {
	r.mu.Lock()
	replaced := false
	for i, c := range r.state.Chains {
		if c.ChainID == desc.ChainID {
			r.state.Chains[i] = desc
			replaced = true
		}
	}
	if !replaced {
		r.state.Chains = append(r.state.Chains, desc)
	}
	r.mu.Unlock()
	return r.save()
}

func (r *chainRegistry) save() error {
	if r.path == "" {
		return nil
	}
	r.mu.RLock()
	data, err := yaml.Marshal(&r.state)
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal chain registry: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.path, err)
	}
	return nil
}
