/*
Package signing decides whether a registration payload was signed by a trusted key.

The signed bytes are the canonical message: the payload fields joined by "|" in a fixed order, with absent
optional fields rendered as empty strings. Algorithms use JCA names (for example SHA256withRSA or
SHA256withECDSA) so that payloads produced by existing device tooling verify unchanged.

Trust is flat: a payload is accepted when any trusted key of the algorithm's family verifies the signature.
There is no binding between keys and devices and no revocation.
*/
package signing
