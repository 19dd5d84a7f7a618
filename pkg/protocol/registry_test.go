package protocol

import (
	"context"
	"reflect"
	"testing"

	"github.com/stimtools/stimopt/pkg/engine"
)

type noopProtocol struct {
	name string
}

func (p *noopProtocol) Name() string        { return p.name }
func (p *noopProtocol) Description() string { return "does nothing" }

func (p *noopProtocol) Configure(params map[string]interface{}) error { return nil }

func (p *noopProtocol) Run(ctx context.Context, eng engine.Engine) error { return nil }

func (p *noopProtocol) Stop() error { return nil }

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("single_target", func() Protocol {
		return &noopProtocol{name: "single_target"}
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p, err := reg.Get("single_target")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Name() != "single_target" {
		t.Errorf("Name() = %q, want %q", p.Name(), "single_target")
	}

	// Each Get returns a fresh instance
	p2, err := reg.Get("single_target")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p == p2 {
		t.Error("Get() returned the same instance twice")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()

	factory := func() Protocol { return &noopProtocol{name: "dup"} }
	if err := reg.Register("dup", factory); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register("dup", factory); err == nil {
		t.Error("Register() of duplicate name should fail")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Get("missing"); err == nil {
		t.Error("Get() of unknown protocol should fail")
	}
}

func TestRegistryListSorted(t *testing.T) {
	reg := NewRegistry()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		n := name
		if err := reg.Register(n, func() Protocol { return &noopProtocol{name: n} }); err != nil {
			t.Fatalf("Register(%q) error = %v", n, err)
		}
	}

	got := reg.List()
	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}
