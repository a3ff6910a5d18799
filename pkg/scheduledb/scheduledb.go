// Package scheduledb is a thin typed wrapper over pkg/objectstore
// keyed by VM name (spec.md §4.6). Grounded on
// original_source/src/firewheel/vm_resource_manager/schedule_db.py,
// whose ScheduleDB wraps the original's object store the same way;
// this package keeps that one-call-per-VM-name shape and supplements
// ScheduleDB.batch_put, which the distilled spec.md does not name, as
// PutBatch.
package scheduledb

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/sandialabs/firewheel-core/pkg/objectstore"
)

// Envelope is the JSON wire shape stored under key = server_name
// (spec.md §6 "VM Schedule envelope").
type Envelope struct {
	ServerName string `json:"server_name"`
	Text       string `json:"text"` // base64(serialized schedule)
	IP         string `json:"ip"`
}

// DB wraps an objectstore.Store with the schedule envelope codec.
type DB struct {
	store *objectstore.Store
}

// New wraps store.
func New(store *objectstore.Store) *DB {
	return &DB{store: store}
}

// Put serializes schedule bytes into an Envelope under key vmName.
func (d *DB) Put(ctx context.Context, vmName, ip string, scheduleBytes []byte) (objectstore.Outcome, error) {
	env := Envelope{
		ServerName: vmName,
		Text:       base64.StdEncoding.EncodeToString(scheduleBytes),
		IP:         ip,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("scheduledb: marshal envelope for %s: %w", vmName, err)
	}
	return d.store.Put(ctx, vmName, data, true)
}

// PutBatch writes many VMs' schedules in one call, continuing past
// individual failures and reporting them by VM name. Supplemented from
// original_source's ScheduleDB.batch_put, which the distilled spec.md
// does not mention but a full controller implementation needs when
// publishing schedules for an entire experiment at launch.
func (d *DB) PutBatch(ctx context.Context, schedules map[string]struct {
	IP    string
	Bytes []byte
}) map[string]error {
	failures := make(map[string]error)
	for vmName, entry := range schedules {
		if _, err := d.Put(ctx, vmName, entry.IP, entry.Bytes); err != nil {
			failures[vmName] = err
		}
	}
	return failures
}

// Get returns the decoded schedule bytes and control IP for vmName.
func (d *DB) Get(vmName string) (scheduleBytes []byte, ip string, err error) {
	_, rc, err := d.store.Get(vmName)
	if err != nil {
		return nil, "", fmt.Errorf("scheduledb: get %s: %w", vmName, err)
	}
	defer rc.Close()

	var env Envelope
	if err := json.NewDecoder(rc).Decode(&env); err != nil {
		return nil, "", fmt.Errorf("scheduledb: decode envelope for %s: %w", vmName, err)
	}
	data, err := base64.StdEncoding.DecodeString(env.Text)
	if err != nil {
		return nil, "", fmt.Errorf("scheduledb: decode schedule text for %s: %w", vmName, err)
	}
	return data, env.IP, nil
}

// List returns every VM name with a stored schedule.
func (d *DB) List() ([]string, error) {
	return d.store.List("")
}

// Remove deletes vmName's stored schedule.
func (d *DB) Remove(vmName string) error {
	return d.store.Remove(vmName)
}
