package entities

import "strings"

// DepartmentSet is the fixed list of departments tickets can be issued for
type DepartmentSet struct {
	names []string
	index map[string]string
}

// NewDepartmentSet builds a set from canonical department names
func NewDepartmentSet(names []string) *DepartmentSet {
	set := &DepartmentSet{index: make(map[string]string, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, dup := set.index[key]; dup {
			continue
		}
		set.index[key] = n
		set.names = append(set.names, n)
	}
	return set
}

// Resolve returns the canonical spelling of name, matched case-insensitively
func (d *DepartmentSet) Resolve(name string) (string, bool) {
	canonical, ok := d.index[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// Names returns the departments in configuration order
func (d *DepartmentSet) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}
