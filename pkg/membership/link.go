package membership

import "strings"

// pageLink is one relation-tagged URL from an RFC 5988 Link header.
type pageLink struct {
	URL string
	Rel string
}

// parseLinkHeader parses a Link header of the form
//
//	<https://api.example.com/teams?page=2>; rel="next", <...>; rel="last"
//
// Malformed segments are skipped rather than rejected; an upstream that
// mangles its pagination header should degrade to a single page, not an
// error.
func parseLinkHeader(header string) []pageLink {
	var links []pageLink
	for _, segment := range strings.Split(header, ",") {
		parts := strings.Split(segment, ";")
		target := strings.TrimSpace(parts[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		link := pageLink{URL: strings.Trim(target, "<>")}

		for _, param := range parts[1:] {
			key, value, found := strings.Cut(strings.TrimSpace(param), "=")
			if !found {
				continue
			}
			if strings.TrimSpace(key) == "rel" {
				link.Rel = strings.Trim(strings.TrimSpace(value), `"`)
			}
		}
		links = append(links, link)
	}
	return links
}

// nextPageURL returns the rel="next" URL from a Link header, or "" when
// there is no further page.
func nextPageURL(header string) string {
	for _, link := range parseLinkHeader(header) {
		if link.Rel == "next" {
			return link.URL
		}
	}
	return ""
}
