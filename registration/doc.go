/*
Package registration admits device registrations into the ledger.

A registration body is decoded into a types.RegistrationPayload and checked for shape first. Every missing or
malformed field is reported at once through a *ValidationError. The payload then has to pass, in order:
  - nonce consumption, when nonces are required or the payload carries one,
  - signature verification against the trusted key set,
  - a ledger append.

Once the block is mined the device index is pointed at it, so the device can later be looked up by id.

Bodies that are not JSON objects are mined verbatim unless RequireSigned is set.
*/
package registration
