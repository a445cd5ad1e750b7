package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// romWithHeader builds a minimal ROM with a valid-looking header.
func romWithHeader(title, code string, extra ...string) []byte {
	rom := make([]byte, 0x4000)
	copy(rom[0x04:], nintendoLogo)
	copy(rom[0xA0:], title)
	copy(rom[0xAC:], code)
	offset := 0x200
	for _, s := range extra {
		copy(rom[offset:], s)
		offset += 0x40
	}
	return rom
}

func TestHeaderParsing(t *testing.T) {
	cart, err := NewCartridge(romWithHeader("METROID FUS", "AMTE"), "")
	require.NoError(t, err)
	assert.Equal(t, "METROID FUS", cart.Title())
	assert.Equal(t, "AMTE", cart.Code())
}

func TestROMSizeValidation(t *testing.T) {
	_, err := NewCartridge(nil, "")
	assert.ErrorIs(t, err, ErrBadROM)

	_, err = NewCartridge(make([]byte, 0x101), "")
	assert.ErrorIs(t, err, ErrBadROM, "size must be a multiple of 4")

	_, err = NewCartridge(make([]byte, ROMMaxSize+4), "")
	assert.ErrorIs(t, err, ErrBadROM, "over 32MB")
}

func TestBackupDetectionByMagicString(t *testing.T) {
	cases := []struct {
		name  string
		magic string
		kind  BackupKind
	}{
		{"eeprom", "EEPROM_V122", BackupEEPROM},
		{"sram", "SRAM_V113", BackupSRAM},
		{"flash 64k", "FLASH_V126", BackupFlash64K},
		{"flash 512", "FLASH512_V131", BackupFlash64K},
		{"flash 1m", "FLASH1M_V103", BackupFlash128K},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cart, err := NewCartridge(romWithHeader("TEST", "TEST", tc.magic), "")
			require.NoError(t, err)
			assert.Equal(t, tc.kind, cart.Kind)
		})
	}
}

func TestBackupDetectionDefaultsToNone(t *testing.T) {
	cart, err := NewCartridge(romWithHeader("TEST", "TEST"), "")
	require.NoError(t, err)
	assert.Equal(t, BackupNone, cart.Kind)
}

func TestBackupOverride(t *testing.T) {
	cart, err := NewCartridge(romWithHeader("TEST", "TEST", "EEPROM_V122"), "SRAM")
	require.NoError(t, err)
	assert.Equal(t, BackupSRAM, cart.Kind, "override beats detection")

	_, err = NewCartridge(romWithHeader("TEST", "TEST"), "MMC5")
	assert.ErrorIs(t, err, ErrUnsupportedBackup)
}

func TestBackupSizes(t *testing.T) {
	assert.Len(t, NewSRAM().Data(), 0x8000)
	assert.Len(t, NewFlash(false).Data(), 0x10000)
	assert.Len(t, NewFlash(true).Data(), 0x20000)
}

func TestEEPROMMappingWindow(t *testing.T) {
	small, err := NewCartridge(romWithHeader("TEST", "TEST", "EEPROM_V122"), "")
	require.NoError(t, err)
	assert.True(t, small.eepromMapped(0x0D000000))
	assert.True(t, small.eepromMapped(0x0DFFFF00))

	none, err := NewCartridge(romWithHeader("TEST", "TEST"), "")
	require.NoError(t, err)
	assert.False(t, none.eepromMapped(0x0D000000))
}
