package vtex

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestMetadataFromMip(t *testing.T) {
	for mips := uint8(0); mips <= MaxMipLevels; mips++ {
		m, err := MetadataFromMip(mips, 4)
		if err != nil {
			t.Fatalf("MetadataFromMip(%d, 4) error = %v", mips, err)
		}
		if m.SideLen != 1<<mips {
			t.Errorf("MetadataFromMip(%d).SideLen = %d, want %d", mips, m.SideLen, 1<<mips)
		}
		if m.MipLevels != mips {
			t.Errorf("MetadataFromMip(%d).MipLevels = %d", mips, m.MipLevels)
		}
		if err := m.Validate(); err != nil {
			t.Errorf("MetadataFromMip(%d).Validate() = %v", mips, err)
		}
	}
}

func TestMetadataFromMipErrors(t *testing.T) {
	tests := []struct {
		name string
		mips uint8
		bpt  uint8
		want error
	}{
		{"too many levels", MaxMipLevels + 1, 4, ErrTextureTooLarge},
		{"three bytes per texel", 4, 3, ErrUnsupportedTexelSize},
		{"eight bytes per texel", 4, 8, ErrUnsupportedTexelSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MetadataFromMip(tt.mips, tt.bpt); !errors.Is(err, tt.want) {
				t.Errorf("MetadataFromMip(%d, %d) error = %v, want %v", tt.mips, tt.bpt, err, tt.want)
			}
		})
	}
}

func TestMetadataFromDimensions(t *testing.T) {
	tests := []struct {
		hint     uint16
		wantSide uint16
		wantMips uint8
	}{
		{1, 1, 0},
		{2, 2, 1},
		{3, 4, 2},
		{16, 16, 4},
		{17, 32, 5},
		{1000, 1024, 10},
		{4096, 4096, 12},
	}
	for _, tt := range tests {
		m, err := MetadataFromDimensions(tt.hint, 4)
		if err != nil {
			t.Fatalf("MetadataFromDimensions(%d) error = %v", tt.hint, err)
		}
		if m.SideLen != tt.wantSide || m.MipLevels != tt.wantMips {
			t.Errorf("MetadataFromDimensions(%d) = side %d mips %d, want side %d mips %d",
				tt.hint, m.SideLen, m.MipLevels, tt.wantSide, tt.wantMips)
		}
	}
}

func TestMetadataFromDimensionsErrors(t *testing.T) {
	tests := []struct {
		name string
		hint uint16
		bpt  uint8
		want error
	}{
		{"zero", 0, 4, ErrInvalidSideLength},
		{"rounds past maximum", 4097, 4, ErrTextureTooLarge},
		{"max uint16", 65535, 4, ErrTextureTooLarge},
		{"unsupported texel", 16, 1, ErrUnsupportedTexelSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MetadataFromDimensions(tt.hint, tt.bpt); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name string
		m    TextureMetadata
		ok   bool
	}{
		{"valid", TextureMetadata{SideLen: 16, BytesPerTexel: 4, MipLevels: 4}, true},
		{"zero side", TextureMetadata{SideLen: 0, BytesPerTexel: 4}, false},
		{"not power of two", TextureMetadata{SideLen: 12, BytesPerTexel: 4, MipLevels: 3}, false},
		{"wrong mip count", TextureMetadata{SideLen: 16, BytesPerTexel: 4, MipLevels: 3}, false},
		{"too large", TextureMetadata{SideLen: 8192, BytesPerTexel: 4, MipLevels: 13}, false},
		{"bad texel size", TextureMetadata{SideLen: 16, BytesPerTexel: 3, MipLevels: 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestMetadataSizes(t *testing.T) {
	m, err := MetadataFromMip(4, 4)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := m.PageBytes(), 128*128*4; got != want {
		t.Errorf("PageBytes() = %d, want %d", got, want)
	}
	if got, want := m.SourceTexelWidth(), 16*120+8; got != want {
		t.Errorf("SourceTexelWidth() = %d, want %d", got, want)
	}
	if got, want := m.SourceSize(), int64(1928*1928*4); got != want {
		t.Errorf("SourceSize() = %d, want %d", got, want)
	}

	for level := uint8(0); level <= 4; level++ {
		pages := 16 >> level
		if got := m.PagesAt(level); got != pages {
			t.Errorf("PagesAt(%d) = %d, want %d", level, got, pages)
		}
		if got, want := m.RowBytes(level), (pages*120+8)*128*4; got != want {
			t.Errorf("RowBytes(%d) = %d, want %d", level, got, want)
		}
		if got, want := m.RowFileSize(level), int64(pages*128*128*4); got != want {
			t.Errorf("RowFileSize(%d) = %d, want %d", level, got, want)
		}
	}
	if got := m.PagesAt(5); got != 0 {
		t.Errorf("PagesAt(5) = %d, want 0", got)
	}
}

func TestMetadataGPUDescriptors(t *testing.T) {
	m, _ := MetadataFromMip(3, 4)
	if m.Format() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format() = %v, want RGBA8Unorm", m.Format())
	}
	ext := m.TexelExtent(1)
	if ext.Width != 4*PageStride || ext.Height != 4*PageStride || ext.DepthOrArrayLayers != 1 {
		t.Errorf("TexelExtent(1) = %+v", ext)
	}
	for level := uint8(0); level <= m.MipLevels; level++ {
		// The packed span adds the outer border on both sides.
		got := int(m.TexelExtent(level).Width) + 2*PageBorderSize
		if want := RowTexelWidth(m.PagesAt(level)); got != want {
			t.Errorf("mip %d: TexelExtent + borders = %d, row span %d", level, got, want)
		}
	}
	page := PageExtent()
	if page.Width != PageSize || page.Height != PageSize || page.DepthOrArrayLayers != 1 {
		t.Errorf("PageExtent() = %+v", page)
	}
}

func TestMetadataJSON(t *testing.T) {
	m, _ := MetadataFromMip(4, 4)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), `{"side_len":16,"bytes_per_texel":4,"mip_levels":4}`; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}

	var back TextureMetadata
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if back != m {
		t.Errorf("round trip = %+v, want %+v", back, m)
	}
}

func TestMetadataJSONLegacyDimensions(t *testing.T) {
	var m TextureMetadata
	err := json.Unmarshal([]byte(`{"dimensions": [16, 16], "bytes_per_texel": 4, "mip_levels": 4}`), &m)
	if err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if m.SideLen != 16 || m.MipLevels != 4 || m.BytesPerTexel != 4 {
		t.Errorf("got %+v", m)
	}
}

func TestMetadataJSONInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"garbage", `not json`},
		{"truncated", `{"side_len": 16,`},
		{"wrong type", `{"side_len": "sixteen", "bytes_per_texel": 4, "mip_levels": 4}`},
		{"negative", `{"side_len": -16, "bytes_per_texel": 4, "mip_levels": 4}`},
		{"mip mismatch", `{"side_len": 16, "bytes_per_texel": 4, "mip_levels": 5}`},
		{"texel size", `{"side_len": 16, "bytes_per_texel": 3, "mip_levels": 4}`},
		{"non-square", `{"dimensions": [16, 8], "bytes_per_texel": 4, "mip_levels": 4}`},
		{"dimensions too large", `{"dimensions": [100000, 100000], "bytes_per_texel": 4, "mip_levels": 4}`},
		{"disagreeing forms", `{"side_len": 8, "dimensions": [16, 16], "bytes_per_texel": 4, "mip_levels": 4}`},
		{"missing side", `{"bytes_per_texel": 4, "mip_levels": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m TextureMetadata
			if err := json.Unmarshal([]byte(tt.data), &m); err == nil {
				t.Errorf("Unmarshal(%s) succeeded with %+v", tt.data, m)
			}
		})
	}
}
