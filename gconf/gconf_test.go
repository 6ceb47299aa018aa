package gconf

import (
	"encoding/json"
	"testing"

	"github.com/iov-one/issuance/errors"
	"github.com/iov-one/issuance/store"
)

type testConf struct {
	Name  string
	Limit int64

	invalid bool
}

func (c *testConf) Validate() error {
	if c.invalid {
		return errors.Wrap(errors.ErrState, "invalid by declaration")
	}
	return nil
}

func (c *testConf) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

func (c *testConf) Unmarshal(raw []byte) error {
	return json.Unmarshal(raw, c)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := store.MemStore()

	src := testConf{Name: "a name", Limit: 42}
	if err := Save(db, "testpkg", &src); err != nil {
		t.Fatalf("cannot save configuration: %s", err)
	}

	var dst testConf
	if err := Load(db, "testpkg", &dst); err != nil {
		t.Fatalf("cannot load configuration: %s", err)
	}
	if dst != src {
		t.Fatalf("want %+v, got %+v", src, dst)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	db := store.MemStore()

	src := testConf{invalid: true}
	if err := Save(db, "testpkg", &src); !errors.ErrState.Is(err) {
		t.Fatalf("want ErrState, got %+v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	db := store.MemStore()

	var dst testConf
	if err := Load(db, "no-such-package", &dst); !errors.ErrNotFound.Is(err) {
		t.Fatalf("want ErrNotFound, got %+v", err)
	}
}

func TestConfigurationsAreScopedByPackage(t *testing.T) {
	db := store.MemStore()

	first := testConf{Name: "first"}
	second := testConf{Name: "second"}
	if err := Save(db, "one", &first); err != nil {
		t.Fatalf("cannot save configuration: %s", err)
	}
	if err := Save(db, "two", &second); err != nil {
		t.Fatalf("cannot save configuration: %s", err)
	}

	var dst testConf
	if err := Load(db, "one", &dst); err != nil {
		t.Fatalf("cannot load configuration: %s", err)
	}
	if dst.Name != "first" {
		t.Fatalf("configuration from a wrong package: %+v", dst)
	}
}
