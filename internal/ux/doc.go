// Package ux computes the human-plausible pacing hints a chat host uses when
// displaying engine output.
//
// The engine never sleeps. It returns text immediately and the host schedules
// display using the values computed here:
//
//   - Typing delay before each message, scaled by its length
//   - Follow-up delay between a response and each scheduled follow-up
//   - Thinking and reading pauses for hosts that show activity indicators
//   - Progressive delays for hosts that reveal long text chunk by chunk
//
// Every delay is clamped to documented bounds, then jittered through an
// injected random source, then clamped again.
package ux
