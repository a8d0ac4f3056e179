package banktag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_TagFormat(t *testing.T) {
	layout, err := Parse("banktags,1,MyTag,995,1234")
	require.NoError(t, err)

	assert.Equal(t, "MyTag", layout.Name)
	assert.Equal(t, DefaultWidth, layout.Width)
	assert.Equal(t, []Item{
		{ID: 995, Position: 0, Quantity: 1},
		{ID: 1234, Position: 1, Quantity: 1},
	}, layout.Items)
	assert.Equal(t, []int{995, 1234}, layout.BankTag)
	assert.Equal(t, "banktags,1,MyTag,995,1234", layout.OriginalFormat)
}

func TestParse_LayoutFormat(t *testing.T) {
	text := "banktaglayoutsplugin:Zulrah,12934:0,11905:3banktag:12934,11905,385"

	layout, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, "Zulrah", layout.Name)
	assert.Equal(t, []Item{
		{ID: 12934, Position: 0, Quantity: 1},
		{ID: 11905, Position: 3, Quantity: 1},
	}, layout.Items)
	assert.Equal(t, []int{12934, 11905, 385}, layout.BankTag)
	assert.Equal(t, text, Export(layout))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"unknown prefix", "inventory:1,2,3"},
		{"empty", ""},
		{"too few fields", "banktags,1,MyTag"},
		{"bad id in tag format", "banktags,1,MyTag,abc"},
		{"missing delimiter", "banktaglayoutsplugin:Name,1:0,2:1"},
		{"bad position", "banktaglayoutsplugin:Name,1:x banktag:1"},
		{"bad bank tag id", "banktaglayoutsplugin:Name,1:0banktag:1,y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, err := Parse(tt.text)
			require.Error(t, err)
			assert.Nil(t, layout)
			assert.True(t, errors.Is(err, ErrFormat))

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.NotEmpty(t, fe.Reason)
		})
	}
}

func TestExport_RegeneratesWithoutOriginal(t *testing.T) {
	layout := &Layout{
		Name: "Vorkath",
		Items: []Item{
			{ID: 22324, Position: 0, Quantity: 1},
			{ID: 0, Position: 1},
			{ID: 2444, Position: 9, Quantity: 1},
		},
		BankTag: []int{22324, 2444},
		Width:   DefaultWidth,
	}

	text := Export(layout)
	assert.Equal(t, "banktaglayoutsplugin:Vorkath,22324:0,2444:9banktag:22324,2444", text)

	reparsed, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, layout.Name, reparsed.Name)
	assert.True(t, SameItems(reparsed.Items, []Item{
		{ID: 22324, Position: 0},
		{ID: 2444, Position: 9},
	}))
	assert.Equal(t, layout.BankTag, reparsed.BankTag)
}

func TestRoundTrip_LayoutFormat(t *testing.T) {
	inputs := []string{
		"banktaglayoutsplugin:A,1:0banktag:1",
		"banktaglayoutsplugin:Empty,banktag:",
		"banktaglayoutsplugin:Trailing,5:2,6:3,banktag:5,6",
	}

	for _, text := range inputs {
		layout, err := Parse(text)
		require.NoError(t, err, text)
		assert.Equal(t, text, Export(layout))

		// Without the preserved text the regenerated form parses to the same structure.
		stripped := *layout
		stripped.OriginalFormat = ""
		again, err := Parse(Export(&stripped))
		require.NoError(t, err)
		assert.Equal(t, layout.Name, again.Name)
		assert.True(t, SameItems(layout.Items, again.Items))
		assert.Equal(t, layout.BankTag, again.BankTag)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, VariantLayout, Classify("banktaglayoutsplugin:x"))
	assert.Equal(t, VariantTags, Classify("banktags,1,x,1"))
	assert.Equal(t, VariantUnknown, Classify("banktag:1"))
}
