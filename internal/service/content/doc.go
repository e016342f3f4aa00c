// Package content picks the message text and GIF for a celebration.
//
// Candidates come from two pools per category: items dedicated to the seller
// and generic items. Seller items used in the last 24 hours are held back;
// generic items never are. Selection is a cumulative-weight draw where the
// weight grows with time since last use, so recently shown content is rarely
// repeated. When nothing is active the selector renders a fallback template,
// it never returns an error.
package content
