/*
Package iso7816 implements the APDU vocabulary shared by the PKI token
core and the host tooling, according to ISO/IEC 7816-3 and 7816-4.

# Fundamentals

Communication with a token is strictly synchronous:
 1. The terminal sends a Command APDU (Header + Optional Body).
 2. The token processes it to completion and returns a Response APDU
    (Optional Body + Trailer SW1/SW2).

This package is used from both sides of the wire:

  - The token parses raw Command APDUs with ParseCommand and encodes its
    replies with Response.Bytes.
  - The host encodes Command APDUs with Command.Bytes and parses replies
    with ParseResponse. The Client type additionally drives the 61XX
    (response available) and 6CXX (wrong length) transport behaviours.

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but XX response bytes are still available.
  - 0x63CX: Warning, X is a retry counter (e.g. remaining PIN tries).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error conditions.
*/
package iso7816
