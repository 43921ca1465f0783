package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerFingerprintTracksCounters(t *testing.T) {
	base := Ledger{Version: 1, Entries: []LedgerEntry{{Name: "A", Debit: 2}, {Name: "B", Credit: 1}}}
	reloaded := base.Clone()
	reloaded.Version = 7

	assert.Equal(t, base.Fingerprint(), reloaded.Fingerprint())

	settled := base.Clone()
	settled.Entries[0].Debit++
	assert.NotEqual(t, base.Fingerprint(), settled.Fingerprint())

	joined := Ledger{Entries: []LedgerEntry{{Name: "A1", Debit: 2}}}
	split := Ledger{Entries: []LedgerEntry{{Name: "A", Debit: 12}}}
	assert.NotEqual(t, joined.Fingerprint(), split.Fingerprint())
}
