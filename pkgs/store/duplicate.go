package store

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/smarty-bms/smarty/pkgs/model"
)

// copyName derives the clone's name: "<base>_copy_<i>", bumping i past any
// name already taken in the table.
func (s *Store) copyName(table, base string, i int) (string, error) {
	for {
		candidate := fmt.Sprintf("%s_copy_%d", base, i)
		var n int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE name = ?`, candidate).Scan(&n)
		if err != nil {
			return "", errors.Wrap(err, "probe copy name")
		}
		if n == 0 {
			return candidate, nil
		}
		i++
	}
}

// DuplicateDevice clones a device count times, registers included. Returns
// the ids of the clones.
func (s *Store) DuplicateDevice(id int64, count int) ([]int64, error) {
	src, err := s.GetDevice(id)
	if err != nil {
		return nil, err
	}
	registers, err := s.ListRegisters(id)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for i := 1; i <= count; i++ {
		clone := src
		clone.ID = 0
		clone.IsOnline = false
		clone.LastCommunication = nil
		if clone.Name, err = s.copyName("devices", src.Name, i); err != nil {
			return nil, err
		}
		clone.Slug = model.Slugify(clone.Name)
		if err := s.CreateDevice(&clone); err != nil {
			return nil, err
		}

		for _, r := range registers {
			rc := r
			rc.ID = 0
			rc.DeviceID = clone.ID
			rc.CurrentValue = ""
			rc.ErrorStatus = model.StatusOK
			rc.ErrorMessage = ""
			rc.LastCommunication = nil
			if err := s.CreateRegister(&rc); err != nil {
				return nil, err
			}
		}
		ids = append(ids, clone.ID)
	}
	logrus.Debugf("duplicated device %d into %v", id, ids)
	return ids, nil
}

// DuplicateGroup clones a point group count times, points included. Cloned
// points keep their configuration but start with empty runtime values.
func (s *Store) DuplicateGroup(id int64, count int) ([]int64, error) {
	var src model.PointGroup
	err := s.db.QueryRow(`SELECT id, name, slug, description, is_active, sort_order
		FROM point_groups WHERE id = ?`, id).
		Scan(&src.ID, &src.Name, &src.Slug, &src.Description, &src.IsActive, &src.Order)
	if err != nil {
		return nil, errors.Wrapf(err, "get group %d", id)
	}
	points, err := s.ListPoints(id)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for i := 1; i <= count; i++ {
		clone := src
		clone.ID = 0
		clone.Order = 0
		if clone.Name, err = s.copyName("point_groups", src.Name, i); err != nil {
			return nil, err
		}
		clone.Slug = model.Slugify(clone.Name)
		if err := s.CreateGroup(&clone); err != nil {
			return nil, err
		}

		for _, p := range points {
			pc := p
			pc.ID = 0
			pc.GroupID = clone.ID
			pc.ReadValue = nil
			pc.WriteValue = nil
			pc.ErrorStatus = model.StatusOK
			pc.ErrorMessage = ""
			pc.LastCommunication = nil
			if err := s.CreatePoint(&pc); err != nil {
				return nil, err
			}
		}
		ids = append(ids, clone.ID)
	}
	logrus.Debugf("duplicated group %d into %v", id, ids)
	return ids, nil
}

// DuplicateFBDProgram clones a diagram program count times. Clones start
// inactive with empty runtime maps.
func (s *Store) DuplicateFBDProgram(id int64, count int) ([]int64, error) {
	src, err := s.GetFBDProgram(id)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for i := 1; i <= count; i++ {
		clone := src
		clone.ID = 0
		clone.IsActive = false
		clone.RuntimeValues = ""
		clone.RuntimeState = ""
		if clone.Name, err = s.copyName("fbd_programs", src.Name, i); err != nil {
			return nil, err
		}
		if err := s.CreateFBDProgram(&clone); err != nil {
			return nil, err
		}
		ids = append(ids, clone.ID)
	}
	return ids, nil
}

// DuplicateScriptProgram clones a script count times, bindings included.
// Clones start inactive with cleared execution metadata.
func (s *Store) DuplicateScriptProgram(id int64, count int) ([]int64, error) {
	src, err := s.GetScriptProgram(id)
	if err != nil {
		return nil, err
	}
	bindings, err := s.Bindings(id)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for i := 1; i <= count; i++ {
		clone := src
		clone.ID = 0
		clone.IsActive = false
		clone.LastExecutionStatus = ""
		clone.LastExecutionLog = ""
		if clone.Name, err = s.copyName("script_programs", src.Name, i); err != nil {
			return nil, err
		}
		if err := s.CreateScriptProgram(&clone); err != nil {
			return nil, err
		}

		cloned := make([]model.ScriptBinding, len(bindings))
		copy(cloned, bindings)
		for j := range cloned {
			cloned[j].ID = 0
		}
		if err := s.SetBindings(clone.ID, cloned); err != nil {
			return nil, err
		}
		ids = append(ids, clone.ID)
	}
	return ids, nil
}
