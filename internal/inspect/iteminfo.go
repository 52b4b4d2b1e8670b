package inspect

import "time"

// RawSticker is a sticker as the GC reports it.
type RawSticker struct {
	Slot      int      `json:"slot"`
	StickerID uint32   `json:"sticker_id"`
	Wear      *float64 `json:"wear,omitempty"`
	Scale     *float64 `json:"scale,omitempty"`
	Rotation  *float64 `json:"rotation,omitempty"`
}

// RawItemInfo is the GC's item payload before normalization. Field names
// follow the upstream wire format (paintwear, sticker_id, nullable seed).
type RawItemInfo struct {
	ItemID     uint64       `json:"itemid"`
	DefIndex   uint32       `json:"defindex"`
	PaintIndex uint32       `json:"paintindex"`
	Rarity     uint32       `json:"rarity"`
	Quality    uint32       `json:"quality"`
	Paintwear  float64      `json:"paintwear"`
	Paintseed  *int32       `json:"paintseed"`
	Origin     uint32       `json:"origin"`
	Stickers   []RawSticker `json:"stickers"`
}

// Sticker is a normalized sticker entry.
type Sticker struct {
	Slot      int      `json:"slot"`
	StickerID uint32   `json:"stickerId"`
	Wear      *float64 `json:"wear,omitempty"`
	Scale     *float64 `json:"scale,omitempty"`
	Rotation  *float64 `json:"rotation,omitempty"`
}

// ItemInfo is the canonical inspection answer handed to callers.
// FloatValue carries the GC's paintwear; Paintseed is never null (0 when the
// GC omits it). The request's link fields are passed through, and Delay is
// the remaining post-reply cooldown the serving bot will observe.
type ItemInfo struct {
	ItemID     uint64    `json:"itemid"`
	DefIndex   uint32    `json:"defindex"`
	PaintIndex uint32    `json:"paintindex"`
	Rarity     uint32    `json:"rarity"`
	Quality    uint32    `json:"quality"`
	FloatValue float64   `json:"floatValue"`
	Paintseed  int32     `json:"paintseed"`
	Origin     uint32    `json:"origin"`
	Stickers   []Sticker `json:"stickers"`

	S string `json:"s"`
	A string `json:"a"`
	D string `json:"d"`
	M string `json:"m"`

	DelayMs int64 `json:"delay"`
}

// Normalize converts a raw GC payload into the canonical ItemInfo:
// paintwear becomes FloatValue, a missing paintseed becomes 0, sticker_id
// becomes stickerId, the link fields are attached, and delay is clamped to
// be non-negative.
func Normalize(raw RawItemInfo, link Link, delay time.Duration) ItemInfo {
	if delay < 0 {
		delay = 0
	}
	info := ItemInfo{
		ItemID:     raw.ItemID,
		DefIndex:   raw.DefIndex,
		PaintIndex: raw.PaintIndex,
		Rarity:     raw.Rarity,
		Quality:    raw.Quality,
		FloatValue: raw.Paintwear,
		Origin:     raw.Origin,
		S:          link.S,
		A:          link.A,
		D:          link.D,
		M:          link.M,
		DelayMs:    delay.Milliseconds(),
	}
	if raw.Paintseed != nil {
		info.Paintseed = *raw.Paintseed
	}
	if len(raw.Stickers) > 0 {
		info.Stickers = make([]Sticker, 0, len(raw.Stickers))
		for _, s := range raw.Stickers {
			info.Stickers = append(info.Stickers, Sticker{
				Slot:      s.Slot,
				StickerID: s.StickerID,
				Wear:      s.Wear,
				Scale:     s.Scale,
				Rotation:  s.Rotation,
			})
		}
	}
	return info
}
