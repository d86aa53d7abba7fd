package state

import (
	"errors"
	"fmt"
	"math"
)

// StateVersion identifies the expected on-disk schema layout. Increment it
// whenever stored records change shape.
const StateVersion uint32 = 1

var (
	stateVersionKey      = []byte("state/version")
	deploymentVersionKey = []byte("state/deployment")
	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
	// ErrDeploymentMismatch indicates the database was initialised from a
	// different deployment configuration version.
	ErrDeploymentMismatch = errors.New("state: deployment version mismatch")
)

// SetStateVersion records the provided schema version in state.
func (m *Manager) SetStateVersion(version uint32) error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	return m.KVPut(stateVersionKey, uint64(version))
}

// StateVersion returns the stored schema version and a boolean indicating
// whether the value was present.
func (m *Manager) StateVersion() (uint32, bool, error) {
	if m == nil {
		return 0, false, fmt.Errorf("state: manager unavailable")
	}
	var stored uint64
	ok, err := m.KVGet(stateVersionKey, &stored)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	if stored > uint64(math.MaxUint32) {
		return 0, false, fmt.Errorf("state: schema version overflow: %d", stored)
	}
	return uint32(stored), true, nil
}

// SetDeploymentVersion records the configuration version genesis was applied from.
func (m *Manager) SetDeploymentVersion(version uint64) error {
	return m.KVPut(deploymentVersionKey, version)
}

// DeploymentVersion returns the recorded configuration version.
func (m *Manager) DeploymentVersion() (uint64, bool, error) {
	var stored uint64
	ok, err := m.KVGet(deploymentVersionKey, &stored)
	return stored, ok, err
}

// EnsureVersions verifies that stored state matches this binary and the
// supplied deployment version. An empty database passes and reports false.
func (m *Manager) EnsureVersions(deployment uint64) (bool, error) {
	version, ok, err := m.StateVersion()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if version != StateVersion {
		return true, fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
	}
	stored, _, err := m.DeploymentVersion()
	if err != nil {
		return true, err
	}
	if stored != deployment {
		return true, fmt.Errorf("%w: on-disk=%d expected=%d", ErrDeploymentMismatch, stored, deployment)
	}
	return true, nil
}
