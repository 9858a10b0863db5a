package engine

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	dagerrors "github.com/stevehiehn/deployseq/internal/errors"
)

// DeploymentResult records one confirmed deployment. It is created once the
// chain client reports inclusion and never changes afterwards.
type DeploymentResult struct {
	Name        string         `json:"name"`
	Contract    string         `json:"contract"`
	Address     common.Address `json:"address"`
	Confirmed   bool           `json:"confirmed"`
	TxHash      string         `json:"tx_hash,omitempty"`
	BlockNumber uint64         `json:"block_number,omitempty"`
	Args        []string       `json:"args,omitempty"`
}

// Registry maps step names to their results in insertion order.
type Registry struct {
	order   []string
	results map[string]DeploymentResult
}

func NewRegistry() *Registry {
	return &Registry{results: map[string]DeploymentResult{}}
}

// Insert records a result. Overwriting an existing name is rejected.
func (r *Registry) Insert(res DeploymentResult) error {
	if _, ok := r.results[res.Name]; ok {
		return dagerrors.NewDuplicateStep(res.Name)
	}
	r.results[res.Name] = res
	r.order = append(r.order, res.Name)
	return nil
}

func (r *Registry) Get(name string) (DeploymentResult, bool) {
	res, ok := r.results[name]
	return res, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.results[name]
	return ok
}

func (r *Registry) Len() int { return len(r.order) }

// Names returns step names in the order they were recorded.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns results in the order they were recorded.
func (r *Registry) All() []DeploymentResult {
	out := make([]DeploymentResult, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.results[name])
	}
	return out
}

// Addresses returns step name to hex address, for template substitution.
func (r *Registry) Addresses() map[string]string {
	m := make(map[string]string, len(r.results))
	for name, res := range r.results {
		m[name] = res.Address.Hex()
	}
	return m
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.All())
}
