package decisionkit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageValidate(t *testing.T) {
	require.NoError(t, NewMessage("user", "How are sales?").Validate())

	err := NewMessage("", "x").Validate()
	require.Error(t, err)

	err = NewMessage("manager", "x").Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported message role "manager"`)

	err = NewMessage("user", strings.Repeat("a", maxContentSize+1)).Validate()
	require.Error(t, err)
}

func TestMessageMetadataString(t *testing.T) {
	m := NewMessage("user", "q").WithMetadata("conversation_id", "abc")
	assert.Equal(t, "abc", m.MetadataString("conversation_id"))
	assert.Equal(t, "", m.MetadataString("missing"))

	var nilMsg *Message
	assert.Equal(t, "", nilMsg.MetadataString("x"))
}

func TestParseDomain(t *testing.T) {
	cases := map[string]Domain{
		"marketing":   DomainMarketing,
		" Sales ":     DomainSales,
		"LOGISTICS":   DomainLogistics,
		"collection":  DomainCollection,
		"collections": DomainCollection,
	}
	for in, want := range cases {
		got, err := ParseDomain(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	got, err := ParseDomain("finance")
	require.Error(t, err)
	assert.Equal(t, DomainUnknown, got)
}

func TestAllDomainsOrder(t *testing.T) {
	assert.Equal(t, []Domain{DomainMarketing, DomainSales, DomainLogistics, DomainCollection}, AllDomains())
	for _, d := range AllDomains() {
		assert.True(t, d.Valid())
	}
	assert.False(t, DomainUnknown.Valid())
}
