// Package locator parses the readium-style position descriptors stored with
// progress, bookmarks and annotations.
//
// Stored locators are JSON blobs written by older app versions, other clients
// and the server. They are validated when read and never raise: Parse returns a
// Result that is either the parsed value or the reason it was rejected, so a
// malformed historical row degrades to "no value" instead of failing a sync pass.
//
//	res := locator.Parse(row.Locator)
//	if loc, ok := res.Get(); ok {
//	    // use loc
//	}
package locator
