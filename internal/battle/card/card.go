// Package card defines the card records consumed by the battle core.
//
// Cards are produced elsewhere (collection storage, the generation pipeline)
// and are treated as read-only input: the battle core never mutates or
// persists them.
package card

// Card is the full card record as supplied by the collection. It is carried
// opaquely through the image-transfer handshake; the battle core only reads
// its identity and numeric fields.
type Card struct {
	ID       string
	Name     string
	Attack   int
	Health   int
	Rarity   string
	ImageURL string
}

// BattleCard is the battle-ready projection of a card: the fields the
// session state machine and the battle narrative need, nothing more.
type BattleCard struct {
	ID            string
	Name          string
	Attack        int
	Health        int
	CurrentHealth int
}

// Project derives the battle projection from a full card record.
// CurrentHealth starts at the card's full health.
func Project(c Card) BattleCard {
	return BattleCard{
		ID:            c.ID,
		Name:          c.Name,
		Attack:        c.Attack,
		Health:        c.Health,
		CurrentHealth: c.Health,
	}
}
