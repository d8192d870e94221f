package moderation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/chatwarden/chatwarden/internal/db"
)

type LinkKind string

const (
	LinkShortener LinkKind = "shortener"
	LinkGambling  LinkKind = "gambling"
	LinkAdult     LinkKind = "adult"
	LinkScam      LinkKind = "scam"
	LinkBenign    LinkKind = "benign"
)

var linkKindDomains = map[LinkKind][]string{
	LinkShortener: {
		"bit.ly", "tinyurl.com", "shorturl.at", "ow.ly", "t.co",
		"goo.gl", "buff.ly", "tiny.cc", "is.gd", "v.gd",
	},
	LinkGambling: {
		"bet365.com", "pokerstars.com", "888casino.com", "betfair.com",
		"williamhill.com", "ladbrokes.com", "bwin.com",
	},
	LinkAdult: {
		"pornhub.com", "xvideos.com", "xnxx.com", "redtube.com",
		"youporn.com", "tube8.com", "spankbang.com",
	},
	LinkScam: {
		"earn-money-fast.com", "free-bitcoin.com", "get-rich-quick.net",
		"miracle-cure.org", "weight-loss-secret.com",
	},
}

var dangerousExtensions = []string{
	".exe", ".bat", ".cmd", ".scr", ".pif", ".com", ".jar", ".sh",
}

var (
	urlRE        = regexp.MustCompile(`https?://[^\s]+`)
	bareDomainRE = regexp.MustCompile(`(?:^|\s)((?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,})`)
)

// ContentFilter evaluates message content against a chat policy. Stateless:
// every check runs, none short-circuits, and the union of violations is
// returned. An empty result means the message is clear.
type ContentFilter struct{}

func (f ContentFilter) Evaluate(event Event, policy *db.ChatPolicy) []ViolationKind {
	var violations []ViolationKind
	violations = append(violations, f.checkBannedWords(event.Text, policy)...)
	violations = append(violations, f.checkLinks(event.Text, policy)...)
	violations = append(violations, f.checkMedia(event, policy)...)
	violations = append(violations, f.checkForward(event, policy)...)
	return violations
}

func (ContentFilter) checkBannedWords(text string, policy *db.ChatPolicy) []ViolationKind {
	if text == "" || len(policy.BannedWords) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	for _, word := range policy.BannedWords {
		if word == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(word)) {
			return []ViolationKind{ViolationBannedWord}
		}
	}
	return nil
}

func (f ContentFilter) checkLinks(text string, policy *db.ChatPolicy) []ViolationKind {
	if text == "" || len(policy.BlockedLinkKinds) == 0 {
		return nil
	}
	blocked := make(map[LinkKind]bool, len(policy.BlockedLinkKinds))
	for _, kind := range policy.BlockedLinkKinds {
		blocked[LinkKind(kind)] = true
	}

	for _, raw := range urlRE.FindAllString(text, -1) {
		if isWhitelisted(linkHost(raw), policy.WhitelistedDomains) {
			continue
		}
		if blocked[ClassifyLink(raw)] {
			return []ViolationKind{ViolationBlockedLink}
		}
	}
	for _, match := range bareDomainRE.FindAllStringSubmatch(text, -1) {
		if isWhitelisted(match[1], policy.WhitelistedDomains) {
			continue
		}
		if blocked[classifyDomain(match[1])] {
			return []ViolationKind{ViolationBlockedLink}
		}
	}
	return nil
}

func linkHost(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}
	return parsed.Hostname()
}

// isWhitelisted exempts a domain and its subdomains from link classification.
func isWhitelisted(domain string, allowed db.StringSlice) bool {
	domain = strings.ToLower(strings.Trim(domain, "."))
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if domain == entry || strings.HasSuffix(domain, "."+entry) {
			return true
		}
	}
	return false
}

// ClassifyLink maps a URL to a link category by domain heuristics. Unknown
// domains are benign.
func ClassifyLink(raw string) LinkKind {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return classifyDomain(raw)
	}
	return classifyDomain(parsed.Host)
}

func classifyDomain(domain string) LinkKind {
	domain = strings.ToLower(strings.Trim(domain, "."))
	for kind, domains := range linkKindDomains {
		for _, known := range domains {
			if strings.Contains(domain, known) {
				return kind
			}
		}
	}
	return LinkBenign
}

func (ContentFilter) checkMedia(event Event, policy *db.ChatPolicy) []ViolationKind {
	var violations []ViolationKind
	if event.Media != MediaNone && policy.MediaRules[string(event.Media)] {
		violations = append(violations, ViolationMediaBlocked)
	}
	if event.Media == MediaDocument {
		if policy.MaxFileSize > 0 && event.FileSize > policy.MaxFileSize {
			violations = append(violations, ViolationFileTooLarge)
		}
		name := strings.ToLower(event.FileName)
		for _, ext := range dangerousExtensions {
			if strings.HasSuffix(name, ext) {
				violations = append(violations, ViolationDangerousFile)
				break
			}
		}
	}
	return violations
}

func (ContentFilter) checkForward(event Event, policy *db.ChatPolicy) []ViolationKind {
	if event.Forwarded && policy.BlockForwards {
		return []ViolationKind{ViolationForward}
	}
	return nil
}
