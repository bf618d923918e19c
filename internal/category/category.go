package category

import "strings"

// Category is the closed set of topics a news item can be filed under.
type Category string

const (
	Gifts     Category = "gifts"
	Crypto    Category = "crypto"
	NFT       Category = "nft"
	Tech      Category = "tech"
	Community Category = "community"
	General   Category = "general"
)

// priority is the keyword match order; General is the catch-all and has no keywords.
var priority = []Category{Gifts, Crypto, NFT, Tech, Community}

var keywords = map[Category][]string{
	Gifts:     {"подарок", "подарки", "акция", "скидка", "промокод", "бесплатно", "giveaway", "airdrop"},
	Crypto:    {"биткоин", "крипто", "блокчейн", "bitcoin", "ethereum", "crypto", "blockchain", "defi", "nft"},
	NFT:       {"nft", "токен", "коллекция", "токенизация", "non-fungible"},
	Tech:      {"технологии", "ai", "искусственный интеллект", "машинное обучение", "startup", "инновации"},
	Community: {"сообщество", "мероприятие", "встреча", "конференция", "хакатон"},
}

// Priority returns the keyword match order.
func Priority() []Category {
	out := make([]Category, len(priority))
	copy(out, priority)
	return out
}

// All returns every category, General last.
func All() []Category {
	return append(Priority(), General)
}

// Classify returns the first category in priority order whose keyword
// occurs in text, or General.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	for _, c := range priority {
		for _, kw := range keywords[c] {
			if strings.Contains(lower, kw) {
				return c
			}
		}
	}
	return General
}

func Parse(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

func (c Category) Valid() bool {
	switch c {
	case Gifts, Crypto, NFT, Tech, Community, General:
		return true
	}
	return false
}

func (c Category) Glyph() string {
	switch c {
	case Gifts:
		return "🎁"
	case Crypto:
		return "💰"
	case NFT:
		return "🖼️"
	case Tech:
		return "💻"
	case Community:
		return "👥"
	case General:
		return "📢"
	}
	return "📢"
}

func (c Category) String() string { return string(c) }
