package store

import (
	"context"
	"fmt"
)

// Namespace is a logical table of the key/value store.
type Namespace string

const (
	NamespaceChecklists Namespace = "checklist"
	NamespaceReports    Namespace = "report"
)

// Namespaces lists every namespace a Store must support.
var Namespaces = []Namespace{NamespaceChecklists, NamespaceReports}

// Valid reports whether ns is a known namespace.
func (ns Namespace) Valid() bool {
	return ns == NamespaceChecklists || ns == NamespaceReports
}

// Key renders the flat "<namespace>:<key>" form used in logs and file stores.
func Key(ns Namespace, key string) string {
	return string(ns) + ":" + key
}

// Store defines the persistence interface for checklists and reports.
// Values are JSON documents; keys are independent and need no transactions.
type Store interface {
	// Get returns the value stored under key. ok is false when absent.
	Get(ctx context.Context, ns Namespace, key string) (value string, ok bool, err error)
	Set(ctx context.Context, ns Namespace, key, value string) error
	Keys(ctx context.Context, ns Namespace) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func checkNamespace(ns Namespace) error {
	if !ns.Valid() {
		return fmt.Errorf("unknown namespace: %q", ns)
	}
	return nil
}
