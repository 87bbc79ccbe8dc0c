package dict

// englishStopwords is the built-in english stoplist used when a
// stopword dictionary is configured without its own word list.
var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
	"i": {}, "me": {}, "my": {}, "we": {}, "our": {}, "ours": {},
	"you": {}, "your": {}, "yours": {}, "him": {}, "his": {},
	"she": {}, "her": {}, "hers": {}, "them": {}, "theirs": {},
	"am": {}, "been": {}, "being": {}, "does": {}, "did": {},
	"doing": {}, "would": {}, "could": {}, "should": {},
	"there": {}, "then": {}, "than": {}, "these": {}, "those": {},
	"until": {}, "while": {}, "about": {}, "against": {},
	"between": {}, "into": {}, "through": {}, "during": {},
	"before": {}, "after": {}, "above": {}, "below": {},
	"up": {}, "down": {}, "out": {}, "off": {}, "over": {},
	"under": {}, "again": {}, "further": {}, "once": {}, "here": {},
	"all": {}, "any": {}, "both": {}, "few": {}, "more": {},
	"most": {}, "other": {}, "some": {}, "such": {}, "only": {},
	"own": {}, "same": {}, "very": {}, "too": {}, "just": {},
	"because": {}, "how": {}, "why": {}, "now": {},
}
