/*
Package mpir is a probabilistic batch-code (PBC) library layered above a single-query
Private Information Retrieval (PIR) engine. The library features:

  - Five interchangeable batch codes (replication, sharding, d-choices, cuckoo, Pung
    hybrid) behind a common three-operation interface.
  - A multi-PIR client and server that fan a batch of queries out across per-bucket
    PIR instances, with uniform padding of unassigned buckets.
  - A pluggable single-bucket PIR contract, with a plaintext reference engine and a
    lattice-based (BFV) engine.

A batch code splits a database of N items into m buckets such that any k items can be
recovered by querying each bucket at most once (with high probability). The PBC layer
is what makes multi-query PIR cheap: it trades a small storage overhead (m/N) for a
one-query-per-bucket schedule, so a batch of k retrievals costs m single-bucket PIR
queries (every bucket is queried) instead of k full-database ones.
*/
package mpir
