package titles

import (
	"errors"
	"fmt"
	"strconv"
)

// TitleID is the 64 bit identifier embedded in every title file name.
//
// Game updates have the same ProgramId as the main application, except with bitmask 0x800 set.
// https://wiki.gbatemp.net/wiki/List_of_Switch_homebrew_titleID
// Games end with "Y000". With Y being an even digit. Pattern: TitleID & 0xFFFFFFFFFFFFE000 (AND operand).
// DLCs ends with "YXXX". With Y being an odd digit, and XXX a DLC ID from 0x000 to 0xFFF.
// Updates ends with "0800"
type TitleID uint64

const (
	baseMask   TitleID = 0xFFFFFFFFFFFFE000
	updateFlag TitleID = 0x800
)

var ErrBadTitleID = errors.New("title id must be 16 hex digits")

// Kind is the base/update/DLC classification of a TitleID
type Kind int

const (
	KindBase Kind = iota
	KindUpdate
	KindDLC
)

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "Base"
	case KindUpdate:
		return "Update"
	default:
		return "DLC"
	}
}

// ParseTitleID accepts exactly 16 hex digits in either case
func ParseTitleID(s string) (TitleID, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("%w - got %q", ErrBadTitleID, s)
	}
	value, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w - got %q", ErrBadTitleID, s)
	}
	return TitleID(value), nil
}

// String formats the titleID out as a fixed width uppercase hex string
func (id TitleID) String() string {
	return fmt.Sprintf("%016X", uint64(id))
}

// Base masks the id back to the base game it belongs to
func (id TitleID) Base() TitleID {
	return id & baseMask
}

// Update is the update id for the base game of this id.
// The base has its low 13 bits clear, so the first 13 hex digits are kept and "800" appended
func (id TitleID) Update() TitleID {
	return id.Base() | updateFlag
}

func (id TitleID) IsBase() bool {
	return id == id.Base()
}

func (id TitleID) IsUpdate() bool {
	return id == id.Update()
}

func (id TitleID) IsDLC() bool {
	return !id.IsBase() && !id.IsUpdate()
}

func (id TitleID) Kind() Kind {
	switch {
	case id.IsBase():
		return KindBase
	case id.IsUpdate():
		return KindUpdate
	}
	return KindDLC
}

func (id TitleID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *TitleID) UnmarshalText(text []byte) error {
	parsed, err := ParseTitleID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
