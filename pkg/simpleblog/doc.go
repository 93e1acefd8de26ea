// Package simpleblog keeps a blog's metadata row and its blob store objects
// correctly paired across create, update, soft-delete and permanent-delete
// flows.
//
// The two stores fail independently and share no transaction, so every
// multi-step flow runs as a strict step ordering with one compensating
// action: a failed blob upload during create removes the provisional
// metadata row, and permanent delete removes blobs before it will touch the
// row. See the Service interface for the per-flow contracts.
//
// Storage backends (memory, filesystem, S3), repositories (memory,
// PostgreSQL), caches and URL signers are provided by subpackages and wired
// in through functional options:
//
//	svc, err := simpleblog.New(
//		simpleblog.WithRepository(repo),
//		simpleblog.WithBlobStore(store),
//		simpleblog.WithURLSigner(signer),
//	)
package simpleblog
