package types

// Star is the celestial record a wallet registers. Story is stored hex encoded;
// StoryDecoded is only filled in when a block is read back by height.
type Star struct {
	RA           string `json:"ra"`
	Dec          string `json:"dec"`
	Mag          string `json:"mag,omitempty"`
	Cen          string `json:"cen,omitempty"`
	Story        string `json:"story"`
	StoryDecoded string `json:"storyDecoded,omitempty"`
}

// StarBody is the block body of a star registration.
type StarBody struct {
	Address string `json:"address"`
	Star    Star   `json:"star"`
}

// StarRequest is the payload submitted by a wallet to register a star.
type StarRequest struct {
	Address string `json:"address"`
	Star    *Star  `json:"star"`
}
