package content

import (
	"time"

	"github.com/euforicio/techtips/internal/config"
	"github.com/euforicio/techtips/internal/content/tree"
)

// Card is one topic tile on the home page.
type Card struct {
	Modified    time.Time `json:"modified"`
	Path        string    `json:"path"`
	Slug        string    `json:"slug"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Headings    int       `json:"headings"`
	Missing     bool      `json:"missing,omitempty"`
}

// Cards lists the home page tiles for site. Topics keep their configured
// order; a topic whose page is not in root is returned with Missing set.
// Without topics every page in the tree becomes a card.
func Cards(site config.Site, root *tree.Node) []Card {
	if len(site.Topics) == 0 {
		files := root.Files()
		cards := make([]Card, 0, len(files))
		for _, n := range files {
			card := cardFor(n)
			card.Label = n.Title
			if n.Metadata != nil {
				card.Description = n.Metadata.Description
			}
			cards = append(cards, card)
		}
		return cards
	}

	cards := make([]Card, 0, len(site.Topics))
	for _, topic := range site.Topics {
		card := Card{Path: topic.Path, Slug: topic.Slug(), Missing: true}
		if n := root.Find(topic.Path); n != nil && n.Type == tree.NodeTypeFile {
			card = cardFor(n)
		}
		card.Label = topic.Label
		card.Description = topic.Description
		cards = append(cards, card)
	}
	return cards
}

func cardFor(n *tree.Node) Card {
	return Card{
		Path:     n.RelativePath,
		Slug:     n.Slug,
		Modified: n.Modified,
		Headings: n.Headings,
	}
}
