package ocfl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/oneconcern/migrator/pkg/ocfl/status"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	inventoryType    = "https://ocfl.io/1.0/spec/#inventory"
	inventoryFile    = "inventory.json"
	contentDirectory = "content"

	objectNamaste     = "0=ocfl_object_1.0"
	objectNamasteBody = "ocfl_object_1.0\n"
	rootNamaste       = "0=ocfl_1.0"
	rootNamasteBody   = "ocfl_1.0\n"
	layoutFile        = "ocfl_layout.json"
	extensionsDir     = "extensions"
)

// VersionID identifies a version within an object, e.g. v1
type VersionID string

// Num returns the version number
func (v VersionID) Num() int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(v), "v"))
	if err != nil {
		return 0
	}
	return n
}

func versionID(n int) VersionID {
	return VersionID(fmt.Sprintf("v%d", n))
}

// User recorded as the author of a version
type User struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// VersionInfo describes a version about to be committed
type VersionInfo struct {
	Created time.Time
	Message string
	User    User
}

// InventoryVersion is a version entry of an inventory
type InventoryVersion struct {
	Created time.Time           `json:"created"`
	Message string              `json:"message,omitempty"`
	User    *User               `json:"user,omitempty"`
	State   map[string][]string `json:"state"`
}

// Inventory of an OCFL object
type Inventory struct {
	ID               string                          `json:"id"`
	Type             string                          `json:"type"`
	DigestAlgorithm  string                          `json:"digestAlgorithm"`
	Head             VersionID                       `json:"head"`
	ContentDirectory string                          `json:"contentDirectory,omitempty"`
	Manifest         map[string][]string             `json:"manifest"`
	Versions         map[VersionID]*InventoryVersion `json:"versions"`
}

func newInventory(objectID string, alg DigestAlgorithm) *Inventory {
	return &Inventory{
		ID:               objectID,
		Type:             inventoryType,
		DigestAlgorithm:  alg.Name(),
		ContentDirectory: contentDirectory,
		Manifest:         make(map[string][]string),
		Versions:         make(map[VersionID]*InventoryVersion),
	}
}

func parseInventory(data []byte, objectID string) (*Inventory, error) {
	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, status.ErrCorruptInventory.Wrap(err)
	}
	if inv.ID != objectID {
		return nil, status.ErrCorruptInventory.Wrapf("inventory id %q does not match object %q", inv.ID, objectID)
	}
	if _, ok := inv.Versions[inv.Head]; !ok {
		return nil, status.ErrCorruptInventory.Wrapf("head %q of %q is not a known version", inv.Head, objectID)
	}
	if inv.Manifest == nil {
		inv.Manifest = make(map[string][]string)
	}
	if inv.ContentDirectory == "" {
		inv.ContentDirectory = contentDirectory
	}
	return &inv, nil
}

func (inv *Inventory) marshal() ([]byte, error) {
	return json.MarshalIndent(inv, "", "  ")
}

// nextVersion returns the identifier of the version following head
func (inv *Inventory) nextVersion() VersionID {
	return versionID(len(inv.Versions) + 1)
}

// headState flattens the head version state as logical path -> digest
func (inv *Inventory) headState() map[string]string {
	return inv.stateOf(inv.Head)
}

func (inv *Inventory) stateOf(v VersionID) map[string]string {
	res := make(map[string]string)
	ver, ok := inv.Versions[v]
	if !ok {
		return res
	}
	for digest, paths := range ver.State {
		for _, p := range paths {
			res[p] = digest
		}
	}
	return res
}

// contentPathOf returns the first content path recorded for a digest
func (inv *Inventory) contentPathOf(digest string) (string, bool) {
	paths, ok := inv.Manifest[digest]
	if !ok || len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

func stateFromMap(state map[string]string) map[string][]string {
	res := make(map[string][]string)
	for p, digest := range state {
		res[digest] = append(res[digest], p)
	}
	for digest := range res {
		sort.Strings(res[digest])
	}
	return res
}

// VersionDetails describes a committed version
type VersionDetails struct {
	ID      VersionID
	Created time.Time
	Message string
	User    User
	// State maps logical paths to content digests
	State map[string]string
}

// ObjectDetails describes a committed object
type ObjectDetails struct {
	ID              string
	DigestAlgorithm string
	Head            VersionID
	Versions        []VersionDetails
}

// HeadVersion returns the details of the head version
func (o ObjectDetails) HeadVersion() VersionDetails {
	for _, v := range o.Versions {
		if v.ID == o.Head {
			return v
		}
	}
	return VersionDetails{}
}

func (inv *Inventory) details() ObjectDetails {
	d := ObjectDetails{
		ID:              inv.ID,
		DigestAlgorithm: inv.DigestAlgorithm,
		Head:            inv.Head,
		Versions:        make([]VersionDetails, 0, len(inv.Versions)),
	}
	for id, v := range inv.Versions {
		vd := VersionDetails{
			ID:      id,
			Created: v.Created,
			Message: v.Message,
			State:   inv.stateOf(id),
		}
		if v.User != nil {
			vd.User = *v.User
		}
		d.Versions = append(d.Versions, vd)
	}
	sort.Slice(d.Versions, func(i, j int) bool {
		return d.Versions[i].ID.Num() < d.Versions[j].ID.Num()
	})
	return d
}
