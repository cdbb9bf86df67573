// Package resolver holds handle reservations imported from external naming
// systems. Two record sets are kept, ENS and RNS; a handle reserved in
// either set may only be claimed by the address its record names.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// Resolver is a types.HandleOracle backed by admin-managed records.
type Resolver struct {
	mu    sync.RWMutex
	admin common.Address
	ens   map[string]common.Address
	rns   map[string]common.Address
}

// New returns an empty resolver administered by admin.
func New(admin common.Address) *Resolver {
	return &Resolver{
		admin: admin,
		ens:   make(map[string]common.Address),
		rns:   make(map[string]common.Address),
	}
}

// Admin returns the address allowed to change records.
func (r *Resolver) Admin() common.Address {
	return r.admin
}

// AddENSRecords reserves each handle for its address in the ENS set.
func (r *Resolver) AddENSRecords(caller common.Address, records map[string]common.Address) error {
	return r.add(caller, r.ens, records)
}

// AddRNSRecords reserves each handle for its address in the RNS set.
func (r *Resolver) AddRNSRecords(caller common.Address, records map[string]common.Address) error {
	return r.add(caller, r.rns, records)
}

// DeleteENSRecords removes handles from the ENS set. Absent handles are
// ignored.
func (r *Resolver) DeleteENSRecords(caller common.Address, handles []string) error {
	return r.delete(caller, r.ens, handles)
}

// DeleteRNSRecords removes handles from the RNS set. Absent handles are
// ignored.
func (r *Resolver) DeleteRNSRecords(caller common.Address, handles []string) error {
	return r.delete(caller, r.rns, handles)
}

// ENSRecord returns the address handle is reserved for in the ENS set.
// Returns ErrRecordMissing when there is none.
func (r *Resolver) ENSRecord(handle string) (common.Address, error) {
	return r.lookup(r.ens, handle)
}

// RNSRecord returns the address handle is reserved for in the RNS set.
// Returns ErrRecordMissing when there is none.
func (r *Resolver) RNSRecord(handle string) (common.Address, error) {
	return r.lookup(r.rns, handle)
}

// TotalENSCount returns the number of ENS records.
func (r *Resolver) TotalENSCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ens)
}

// TotalRNSCount returns the number of RNS records.
func (r *Resolver) TotalRNSCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rns)
}

// ReservedFor implements types.HandleOracle. It returns the ENS holder
// followed by the RNS holder, omitting sets without a record.
func (r *Resolver) ReservedFor(handle string) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle = normalize(handle)
	var out []common.Address
	if addr, ok := r.ens[handle]; ok {
		out = append(out, addr)
	}
	if addr, ok := r.rns[handle]; ok {
		out = append(out, addr)
	}
	return out
}

func (r *Resolver) add(caller common.Address, set map[string]common.Address, records map[string]common.Address) error {
	if caller != r.admin {
		return fmt.Errorf("%w: %s", types.ErrNotAdmin, caller.Hex())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for handle, addr := range records {
		set[normalize(handle)] = addr
	}
	return nil
}

func (r *Resolver) delete(caller common.Address, set map[string]common.Address, handles []string) error {
	if caller != r.admin {
		return fmt.Errorf("%w: %s", types.ErrNotAdmin, caller.Hex())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, handle := range handles {
		delete(set, normalize(handle))
	}
	return nil
}

func (r *Resolver) lookup(set map[string]common.Address, handle string) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := set[normalize(handle)]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %q", types.ErrRecordMissing, handle)
	}
	return addr, nil
}

func normalize(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// recordsFile is the on-disk layout of a resolver.
type recordsFile struct {
	Admin string            `yaml:"admin"`
	ENS   map[string]string `yaml:"ens,omitempty"`
	RNS   map[string]string `yaml:"rns,omitempty"`
}

// Load reads a resolver from a YAML records file. A missing file yields an
// empty resolver administered by admin.
func Load(path string, admin common.Address) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(admin), nil
		}
		return nil, fmt.Errorf("reading records: %w", err)
	}

	var f recordsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing records: %w", err)
	}
	if f.Admin != "" {
		if !common.IsHexAddress(f.Admin) {
			return nil, fmt.Errorf("parsing records: admin %q is not an address", f.Admin)
		}
		admin = common.HexToAddress(f.Admin)
	}

	r := New(admin)
	for name, set := range map[string]struct {
		src map[string]string
		dst map[string]common.Address
	}{"ens": {f.ENS, r.ens}, "rns": {f.RNS, r.rns}} {
		for handle, addr := range set.src {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("parsing records: %s record %q: %q is not an address", name, handle, addr)
			}
			set.dst[normalize(handle)] = common.HexToAddress(addr)
		}
	}
	return r, nil
}

// Save writes the resolver to path as YAML, creating parent directories.
func (r *Resolver) Save(path string) error {
	r.mu.RLock()
	f := recordsFile{
		Admin: r.admin.Hex(),
		ENS:   hexRecords(r.ens),
		RNS:   hexRecords(r.rns),
	}
	r.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating records directory: %w", err)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	return nil
}

func hexRecords(set map[string]common.Address) map[string]string {
	out := make(map[string]string, len(set))
	for handle, addr := range set {
		out[handle] = addr.Hex()
	}
	return out
}

// Handles returns the reserved handles of both sets, sorted and deduplicated.
func (r *Resolver) Handles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.ens)+len(r.rns))
	var out []string
	for _, set := range []map[string]common.Address{r.ens, r.rns} {
		for handle := range set {
			if !seen[handle] {
				seen[handle] = true
				out = append(out, handle)
			}
		}
	}
	sort.Strings(out)
	return out
}
