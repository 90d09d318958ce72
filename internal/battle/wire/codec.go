package wire

import (
	"time"

	"github.com/nearplay/duelsync/internal/battle/card"
	"github.com/nearplay/duelsync/internal/battle/state"
	"github.com/nearplay/duelsync/internal/battle/transfer"
	apperrors "github.com/nearplay/duelsync/internal/platform/errors"
)

// Wire DTOs. Optional fields are pointers so they serialize as explicit
// nulls; nothing uses omitempty.

type snapshotDTO struct {
	SessionID               string     `json:"sessionId"`
	Version                 uint64     `json:"version"`
	Phase                   string     `json:"phase"`
	LocalPlayer             playerDTO  `json:"localPlayer"`
	OpponentPlayer          playerDTO  `json:"opponentPlayer"`
	Reveal                  *revealDTO `json:"reveal"`
	Battle                  *battleDTO `json:"battle"`
	CanClickReady           bool       `json:"canClickReady"`
	WaitingForOpponentReady bool       `json:"waitingForOpponentReady"`
}

type playerDTO struct {
	HasSelectedCard          bool           `json:"hasSelectedCard"`
	Card                     *battleCardDTO `json:"card"`
	FullCard                 *cardDTO       `json:"fullCard"`
	ImageTransferStatus      string         `json:"imageTransferStatus"`
	ImageHash                *string        `json:"imageHash"`
	IsReady                  bool           `json:"isReady"`
	DataReceivedFromOpponent bool           `json:"dataReceivedFromOpponent"`
}

type battleCardDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Attack        int    `json:"attack"`
	Health        int    `json:"health"`
	CurrentHealth int    `json:"currentHealth"`
}

type cardDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Attack   int    `json:"attack"`
	Health   int    `json:"health"`
	Rarity   string `json:"rarity"`
	ImageURL string `json:"imageUrl"`
}

type revealDTO struct {
	InitiatedBy   string `json:"initiatedBy"`
	StartedAt     string `json:"startedAt"`
	CardsRevealed bool   `json:"cardsRevealed"`
	StatsRevealed bool   `json:"statsRevealed"`
}

type battleDTO struct {
	StorySegments []segmentDTO `json:"storySegments"`
	Result        *resultDTO   `json:"result"`
}

type segmentDTO struct {
	Text   string `json:"text"`
	Actor  string `json:"actor"`
	Damage *int   `json:"damage"`
}

type resultDTO struct {
	IsDraw         bool           `json:"isDraw"`
	Winner         string         `json:"winner"`
	LocalName      string         `json:"localName"`
	OpponentName   string         `json:"opponentName"`
	LocalHealth    int            `json:"localHealth"`
	OpponentHealth int            `json:"opponentHealth"`
	Narrative      string         `json:"narrative"`
	WonCard        *battleCardDTO `json:"wonCard"`
}

type cardSelectedDTO struct {
	SessionID string        `json:"sessionId"`
	Card      battleCardDTO `json:"card"`
	FullCard  *cardDTO      `json:"fullCard"`
}

type readyDTO struct {
	SessionID string `json:"sessionId"`
}

type battleOutcomeDTO struct {
	SessionID string    `json:"sessionId"`
	Result    resultDTO `json:"result"`
}

type healthUpdateDTO struct {
	SessionID     string `json:"sessionId"`
	CurrentHealth int    `json:"currentHealth"`
}

type disconnectDTO struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

func snapshotToDTO(s state.Snapshot) snapshotDTO {
	return snapshotDTO{
		SessionID:               s.SessionID,
		Version:                 s.Version,
		Phase:                   s.Phase.String(),
		LocalPlayer:             playerToDTO(s.LocalPlayer),
		OpponentPlayer:          playerToDTO(s.OpponentPlayer),
		Reveal:                  revealToDTO(s.Reveal),
		Battle:                  battleToDTO(s.Battle),
		CanClickReady:           s.CanClickReady,
		WaitingForOpponentReady: s.WaitingForOpponentReady,
	}
}

func snapshotFromDTO(dto snapshotDTO) (state.Snapshot, error) {
	phase, ok := state.ParsePhase(dto.Phase)
	if !ok {
		return state.Snapshot{}, apperrors.WithMetadata(apperrors.CodeWireMalformedPayload,
			"unknown phase", map[string]string{"phase": dto.Phase})
	}
	local, err := playerFromDTO(dto.LocalPlayer)
	if err != nil {
		return state.Snapshot{}, err
	}
	opponent, err := playerFromDTO(dto.OpponentPlayer)
	if err != nil {
		return state.Snapshot{}, err
	}
	reveal, err := revealFromDTO(dto.Reveal)
	if err != nil {
		return state.Snapshot{}, err
	}
	battle, err := battleFromDTO(dto.Battle)
	if err != nil {
		return state.Snapshot{}, err
	}
	return state.Snapshot{
		SessionID:               dto.SessionID,
		Version:                 dto.Version,
		Phase:                   phase,
		LocalPlayer:             local,
		OpponentPlayer:          opponent,
		Reveal:                  reveal,
		Battle:                  battle,
		CanClickReady:           dto.CanClickReady,
		WaitingForOpponentReady: dto.WaitingForOpponentReady,
	}, nil
}

func playerToDTO(p state.PlayerState) playerDTO {
	dto := playerDTO{
		HasSelectedCard:          p.HasSelectedCard,
		Card:                     battleCardToDTOPtr(p.Card),
		FullCard:                 cardToDTO(p.FullCard),
		ImageTransferStatus:      p.ImageTransferStatus.String(),
		IsReady:                  p.IsReady,
		DataReceivedFromOpponent: p.DataReceivedFromOpponent,
	}
	if p.ImageHash != "" {
		hash := p.ImageHash
		dto.ImageHash = &hash
	}
	// ImageFilePath is intentionally absent: it names a local resource.
	return dto
}

func playerFromDTO(dto playerDTO) (state.PlayerState, error) {
	status, ok := transfer.ParseStatus(dto.ImageTransferStatus)
	if !ok {
		return state.PlayerState{}, apperrors.WithMetadata(apperrors.CodeWireMalformedPayload,
			"unknown image transfer status", map[string]string{"status": dto.ImageTransferStatus})
	}
	p := state.PlayerState{
		HasSelectedCard:          dto.HasSelectedCard,
		Card:                     battleCardFromDTOPtr(dto.Card),
		FullCard:                 cardFromDTO(dto.FullCard),
		ImageTransferStatus:      status,
		IsReady:                  dto.IsReady,
		DataReceivedFromOpponent: dto.DataReceivedFromOpponent,
	}
	if dto.ImageHash != nil {
		p.ImageHash = *dto.ImageHash
	}
	return p, nil
}

func battleCardToDTO(c card.BattleCard) battleCardDTO {
	return battleCardDTO{
		ID:            c.ID,
		Name:          c.Name,
		Attack:        c.Attack,
		Health:        c.Health,
		CurrentHealth: c.CurrentHealth,
	}
}

func battleCardToDTOPtr(c *card.BattleCard) *battleCardDTO {
	if c == nil {
		return nil
	}
	dto := battleCardToDTO(*c)
	return &dto
}

func battleCardFromDTO(dto battleCardDTO) card.BattleCard {
	return card.BattleCard{
		ID:            dto.ID,
		Name:          dto.Name,
		Attack:        dto.Attack,
		Health:        dto.Health,
		CurrentHealth: dto.CurrentHealth,
	}
}

func battleCardFromDTOPtr(dto *battleCardDTO) *card.BattleCard {
	if dto == nil {
		return nil
	}
	c := battleCardFromDTO(*dto)
	return &c
}

func cardToDTO(c *card.Card) *cardDTO {
	if c == nil {
		return nil
	}
	return &cardDTO{
		ID:       c.ID,
		Name:     c.Name,
		Attack:   c.Attack,
		Health:   c.Health,
		Rarity:   c.Rarity,
		ImageURL: c.ImageURL,
	}
}

func cardFromDTO(dto *cardDTO) *card.Card {
	if dto == nil {
		return nil
	}
	return &card.Card{
		ID:       dto.ID,
		Name:     dto.Name,
		Attack:   dto.Attack,
		Health:   dto.Health,
		Rarity:   dto.Rarity,
		ImageURL: dto.ImageURL,
	}
}

func revealToDTO(r *state.RevealState) *revealDTO {
	if r == nil {
		return nil
	}
	return &revealDTO{
		InitiatedBy:   r.InitiatedBy.String(),
		StartedAt:     r.StartedAt.UTC().Format(time.RFC3339Nano),
		CardsRevealed: r.CardsRevealed,
		StatsRevealed: r.StatsRevealed,
	}
}

func revealFromDTO(dto *revealDTO) (*state.RevealState, error) {
	if dto == nil {
		return nil, nil
	}
	side, ok := state.ParseSide(dto.InitiatedBy)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeWireMalformedPayload,
			"unknown reveal initiator", map[string]string{"side": dto.InitiatedBy})
	}
	startedAt, err := time.Parse(time.RFC3339Nano, dto.StartedAt)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeWireMalformedPayload, "parse reveal start time", err)
	}
	return &state.RevealState{
		InitiatedBy:   side,
		StartedAt:     startedAt.UTC(),
		CardsRevealed: dto.CardsRevealed,
		StatsRevealed: dto.StatsRevealed,
	}, nil
}

func battleToDTO(b *state.BattleState) *battleDTO {
	if b == nil {
		return nil
	}
	dto := &battleDTO{
		Result: resultToDTOPtr(b.Result),
	}
	for _, seg := range b.StorySegments {
		dto.StorySegments = append(dto.StorySegments, segmentDTO{
			Text:   seg.Text,
			Actor:  seg.Actor.String(),
			Damage: copyIntPtr(seg.Damage),
		})
	}
	return dto
}

func battleFromDTO(dto *battleDTO) (*state.BattleState, error) {
	if dto == nil {
		return nil, nil
	}
	b := &state.BattleState{}
	for _, seg := range dto.StorySegments {
		actor, ok := state.ParseSide(seg.Actor)
		if !ok {
			return nil, apperrors.WithMetadata(apperrors.CodeWireMalformedPayload,
				"unknown segment actor", map[string]string{"side": seg.Actor})
		}
		b.StorySegments = append(b.StorySegments, state.StorySegment{
			Text:   seg.Text,
			Actor:  actor,
			Damage: copyIntPtr(seg.Damage),
		})
	}
	if dto.Result != nil {
		result, err := resultFromDTO(*dto.Result)
		if err != nil {
			return nil, err
		}
		b.Result = &result
	}
	return b, nil
}

func resultToDTO(r state.BattleResult) resultDTO {
	return resultDTO{
		IsDraw:         r.IsDraw,
		Winner:         r.Winner.String(),
		LocalName:      r.LocalName,
		OpponentName:   r.OpponentName,
		LocalHealth:    r.LocalHealth,
		OpponentHealth: r.OpponentHealth,
		Narrative:      r.Narrative,
		WonCard:        battleCardToDTOPtr(r.WonCard),
	}
}

func resultToDTOPtr(r *state.BattleResult) *resultDTO {
	if r == nil {
		return nil
	}
	dto := resultToDTO(*r)
	return &dto
}

func resultFromDTO(dto resultDTO) (state.BattleResult, error) {
	winner, ok := state.ParseSide(dto.Winner)
	if !ok {
		return state.BattleResult{}, apperrors.WithMetadata(apperrors.CodeWireMalformedPayload,
			"unknown winner side", map[string]string{"side": dto.Winner})
	}
	return state.BattleResult{
		IsDraw:         dto.IsDraw,
		Winner:         winner,
		LocalName:      dto.LocalName,
		OpponentName:   dto.OpponentName,
		LocalHealth:    dto.LocalHealth,
		OpponentHealth: dto.OpponentHealth,
		Narrative:      dto.Narrative,
		WonCard:        battleCardFromDTOPtr(dto.WonCard),
	}, nil
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
