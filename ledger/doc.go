/*
Package ledger keeps the append-only, hash-linked chain of device registration blocks.

Every block commits to its index, the hash of its predecessor, its creation timestamp and its data through a
SHA-256 digest, so editing any stored block is detected by IsChainValid. Blocks also carry a proof-of-work value
that satisfies a fixed modular relation with the previous block's value. The relation is cheap to satisfy and is
kept for compatibility with existing chain files, not as a defense.

When storage is enabled the full chain is rewritten to a single JSON file after every append. This is O(n) per
write; an append-only log would be needed if the chain grows without bound.
*/
package ledger
