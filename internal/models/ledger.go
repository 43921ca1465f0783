package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// LedgerEntry holds one teacher's substitution counters.
type LedgerEntry struct {
	Name   string `db:"teacher_name" json:"name"`
	Debit  int    `db:"debit" json:"debit"`
	Credit int    `db:"credit" json:"credit"`
}

// Net is credit minus debit.
func (e LedgerEntry) Net() int {
	return e.Credit - e.Debit
}

// Ledger is the versioned debit/credit snapshot. Values are never mutated in
// place; settlement returns a new Ledger with the next version.
type Ledger struct {
	Version int           `json:"version"`
	Entries []LedgerEntry `json:"entries"`
}

// Lookup returns the entry for name.
func (l Ledger) Lookup(name string) (LedgerEntry, bool) {
	for _, e := range l.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return LedgerEntry{}, false
}

// Has reports whether name is a known ledger teacher.
func (l Ledger) Has(name string) bool {
	_, ok := l.Lookup(name)
	return ok
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	entries := make([]LedgerEntry, len(l.Entries))
	copy(entries, l.Entries)
	return Ledger{Version: l.Version, Entries: entries}
}

// Fingerprint hashes the entries in ledger order. Counters only grow, so two
// ledgers with the same fingerprint hold the same state regardless of Version,
// which restarts from 1 whenever the ledger is reloaded.
func (l Ledger) Fingerprint() string {
	h := sha256.New()
	for _, e := range l.Entries {
		h.Write([]byte(e.Name))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(e.Debit)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(e.Credit)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// LedgerBalance is the report row for one teacher.
type LedgerBalance struct {
	Name   string `json:"name"`
	Debit  int    `json:"debit"`
	Credit int    `json:"credit"`
	Net    int    `json:"net"`
}

// Balances renders the ledger as report rows in ledger order.
func (l Ledger) Balances() []LedgerBalance {
	rows := make([]LedgerBalance, len(l.Entries))
	for i, e := range l.Entries {
		rows[i] = LedgerBalance{Name: e.Name, Debit: e.Debit, Credit: e.Credit, Net: e.Net()}
	}
	return rows
}
