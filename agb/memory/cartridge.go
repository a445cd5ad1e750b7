package memory

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrBadBIOS is returned for a BIOS image that is not exactly 16KB.
	ErrBadBIOS = errors.New("BIOS image must be 16384 bytes")
	// ErrBadROM is returned for a ROM with an impossible size.
	ErrBadROM = errors.New("bad ROM image")
	// ErrUnsupportedBackup is returned for an unknown backup override name.
	ErrUnsupportedBackup = errors.New("unsupported backup type")
)

// BackupKind identifies the cartridge backup hardware.
type BackupKind uint8

const (
	BackupNone BackupKind = iota
	BackupSRAM
	BackupEEPROM
	BackupFlash64K
	BackupFlash128K
)

func (k BackupKind) String() string {
	switch k {
	case BackupSRAM:
		return "SRAM"
	case BackupEEPROM:
		return "EEPROM"
	case BackupFlash64K:
		return "FLASH512"
	case BackupFlash128K:
		return "FLASH1M"
	default:
		return "NONE"
	}
}

// Cartridge is the GamePak: the ROM image, its parsed header, and the
// backup chip behind the SRAM region.
type Cartridge struct {
	ROM    []byte
	Kind   BackupKind
	Backup Backup

	title string
	code  string
}

// nintendoLogo is the start of the compressed logo bitmap every licensed
// header carries at offset 0x04.
var nintendoLogo = []byte{0x24, 0xFF, 0xAE, 0x51, 0x69, 0x9A, 0xA2, 0x21}

// NewCartridge validates a ROM image and picks the backup chip, either
// from the override name ("SRAM", "EEPROM", "FLASH512", "FLASH1M", "NONE")
// or by scanning for the library ID strings the backup drivers embed.
func NewCartridge(rom []byte, backupOverride string) (*Cartridge, error) {
	if len(rom) == 0 || len(rom)%4 != 0 || len(rom) > ROMMaxSize {
		return nil, fmt.Errorf("%w: size %d", ErrBadROM, len(rom))
	}

	c := &Cartridge{ROM: rom}
	if len(rom) >= 0xC0 {
		c.title = headerString(rom[0xA0:0xAC])
		c.code = headerString(rom[0xAC:0xB0])
		if !bytes.Equal(rom[0x04:0x04+len(nintendoLogo)], nintendoLogo) {
			slog.Warn("ROM header logo check failed", "title", c.title)
		}
	}

	kind, err := resolveBackupKind(rom, backupOverride)
	if err != nil {
		return nil, err
	}
	c.Kind = kind
	c.Backup = newBackup(kind)

	slog.Debug("Cartridge loaded",
		"title", c.title, "code", c.code,
		"size", len(rom), "backup", kind.String())
	return c, nil
}

func headerString(raw []byte) string {
	return strings.TrimRight(string(raw), "\x00")
}

// Title returns the 12-character game title from the header.
func (c *Cartridge) Title() string {
	return c.title
}

// Code returns the 4-character game code from the header.
func (c *Cartridge) Code() string {
	return c.code
}

func resolveBackupKind(rom []byte, override string) (BackupKind, error) {
	switch strings.ToUpper(override) {
	case "":
		return detectBackupKind(rom), nil
	case "NONE":
		return BackupNone, nil
	case "SRAM":
		return BackupSRAM, nil
	case "EEPROM":
		return BackupEEPROM, nil
	case "FLASH", "FLASH512":
		return BackupFlash64K, nil
	case "FLASH1M":
		return BackupFlash128K, nil
	default:
		return BackupNone, fmt.Errorf("%w: %q", ErrUnsupportedBackup, override)
	}
}

// detectBackupKind scans for the backup library ID strings linkers place
// in every licensed ROM.
func detectBackupKind(rom []byte) BackupKind {
	switch {
	case bytes.Contains(rom, []byte("EEPROM_V")):
		return BackupEEPROM
	case bytes.Contains(rom, []byte("FLASH1M_V")):
		return BackupFlash128K
	case bytes.Contains(rom, []byte("FLASH512_V")), bytes.Contains(rom, []byte("FLASH_V")):
		return BackupFlash64K
	case bytes.Contains(rom, []byte("SRAM_V")):
		return BackupSRAM
	default:
		return BackupNone
	}
}

// eepromMapped reports whether a 0x0D region address reaches the EEPROM.
// Small ROMs expose it across the whole wait region 2 high half; 32MB ROMs
// only in the top 256 bytes.
func (c *Cartridge) eepromMapped(address uint32) bool {
	if c.Kind != BackupEEPROM {
		return false
	}
	if len(c.ROM) > 0x1000000 {
		return address&0x01FFFFFF >= 0x01FFFF00
	}
	return true
}
