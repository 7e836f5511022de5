package device

import (
	"runtime"
	"testing"

	"github.com/jaypipes/ghw/pkg/block"
	"github.com/stretchr/testify/assert"

	"objectstorage/internal/core/domain"
)

func TestSectorSizeFor(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mount points are unix paths")
	}
	root := &block.Disk{PhysicalBlockSizeBytes: 512}
	root.Partitions = []*block.Partition{{Disk: root, MountPoint: "/"}}
	data := &block.Disk{PhysicalBlockSizeBytes: 4096}
	data.Partitions = []*block.Partition{{Disk: data, MountPoint: "/data"}, {Disk: data}}
	odd := &block.Disk{PhysicalBlockSizeBytes: 1000}
	odd.Partitions = []*block.Partition{{Disk: odd, MountPoint: "/odd"}}
	disks := []*block.Disk{root, data, odd}

	tests := []struct {
		path   string
		want   int
		wantOK bool
	}{
		{"/home/user/file", 512, true},
		{"/data/file", 4096, true},
		{"/data", 4096, true},
		{"/database/file", 512, true},
		{"/odd/file", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := sectorSizeFor(tt.path, disks)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := sectorSizeFor("/x", nil)
	assert.False(t, ok)
}

func TestSectorSize(t *testing.T) {
	n := SectorSize(t.TempDir())
	assert.True(t, validSector(n), "sector size %d", n)
	assert.GreaterOrEqual(t, n, domain.SectorAlignment)
}

func TestDiskSpace(t *testing.T) {
	free, err := DiskSpace{}.FreeBytes(t.TempDir())
	assert.NoError(t, err)
	assert.Greater(t, free, uint64(0))

	_, err = DiskSpace{}.FreeBytes("/definitely/not/a/dir")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	info := Describe()
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.Hostname)
}
