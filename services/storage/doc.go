/*
Package storage provides the key/value document store backing the recipient
and alert collections.

Each collection is a namespace returned by Service.Store. Objects are
versioned JSON documents kept by an IndexedStore, which maintains a
directory-like layout of data and index keys inside the namespace:

	/<prefix>/data/<id>               encoded object
	/<prefix>/indexes/<index>/<value> object id

A bbolt backed implementation is used by the daemon, MemStore by tests.
*/
package storage
