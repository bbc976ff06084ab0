package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp.", "acme"},
		{"Acme Corporation", "acme"},
		{"  Foo, Inc. ", "foo"},
		{"Bar Holdings LLC", "bar_holdings"},
		{"The Widget Company", "the_widget"},
		{"Group", "group"},
		{"Smith & Co", "smith"},
		{"Baz Group Inc", "baz_group"},
		{"Café Ltd", "caf"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSubject(tt.in))
		})
	}
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := Fingerprint("Acme Corp.", []string{"a.xlsx", "b.xlsx"})
	b := Fingerprint("Acme Corp.", []string{"b.xlsx", "a.xlsx"})
	assert.Equal(t, a, b)
	assert.Regexp(t, `^acme_[0-9a-f]{8}$`, a)
}

func TestFingerprint_Differs(t *testing.T) {
	base := Fingerprint("Acme", []string{"a.xlsx"})
	assert.NotEqual(t, base, Fingerprint("Acme", []string{"a.xlsx", "b.xlsx"}))
	assert.NotEqual(t, base, Fingerprint("Globex", []string{"a.xlsx"}))
	assert.Equal(t, base, Fingerprint("ACME Inc", []string{"a.xlsx"}))
}

func TestPathsDigest_DoesNotMutate(t *testing.T) {
	paths := []string{"z.xlsx", "a.xlsx"}
	_ = PathsDigest(paths)
	assert.Equal(t, []string{"z.xlsx", "a.xlsx"}, paths)
}
