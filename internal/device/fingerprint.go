package device

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/jaypipes/ghw"
	"github.com/jaypipes/ghw/pkg/block"
	"github.com/shirou/gopsutil/disk"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/core/ports"
)

// AppID scopes the protected machine id to this program.
const AppID = "objectstorage"

// Info describes the host for startup logs.
type Info struct {
	Platform    string
	Hostname    string
	CPUModel    string
	TotalMemory uint64
}

// HostID returns the machine id hashed with appID. It is stable across
// reboots and never exposes the raw id.
func HostID(appID string) (string, error) {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		return "", fmt.Errorf("failed to get machine ID: %w", err)
	}
	return id, nil
}

// Describe collects hardware facts. Missing facts are left empty.
func Describe() Info {
	info := Info{
		Platform: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Hostname: getHostname(),
	}
	if cpu, err := ghw.CPU(ghw.WithNullAlerter()); err == nil && len(cpu.Processors) > 0 {
		info.CPUModel = cpu.Processors[0].Model
	}
	if mem, err := ghw.Memory(ghw.WithNullAlerter()); err == nil {
		info.TotalMemory = uint64(mem.TotalPhysicalBytes)
	}
	return info
}

// SectorSize returns the physical block size of the disk holding path,
// or the default alignment when it cannot be determined.
func SectorSize(path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.SectorAlignment
	}
	info, err := ghw.Block(ghw.WithNullAlerter())
	if err != nil {
		return domain.SectorAlignment
	}
	if size, ok := sectorSizeFor(abs, info.Disks); ok {
		return size
	}
	return domain.SectorAlignment
}

// sectorSizeFor picks the disk whose partition has the longest mount
// point containing path.
func sectorSizeFor(path string, disks []*block.Disk) (int, bool) {
	best, size := -1, 0
	for _, d := range disks {
		for _, p := range d.Partitions {
			if p.MountPoint == "" || !within(path, p.MountPoint) {
				continue
			}
			if len(p.MountPoint) > best {
				best, size = len(p.MountPoint), int(d.PhysicalBlockSizeBytes)
			}
		}
	}
	if best < 0 || !validSector(size) {
		return 0, false
	}
	return size, true
}

func within(path, mount string) bool {
	if mount == "/" || path == mount {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mount, string(filepath.Separator))+string(filepath.Separator))
}

func validSector(n int) bool {
	return n >= domain.SectorAlignment && n&(n-1) == 0
}

// DiskSpace reports free space with gopsutil.
type DiskSpace struct{}

var _ ports.SpaceChecker = DiskSpace{}

func (DiskSpace) FreeBytes(dir string) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to get disk usage for %s: %w", dir, err)
	}
	return usage.Free, nil
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
