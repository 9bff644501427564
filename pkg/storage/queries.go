package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dougsko/nrfd/pkg/firmware"
)

// ObservationQuery represents query parameters for retrieving observations
type ObservationQuery struct {
	Limit               int
	Offset              int
	Since               *time.Time
	Until               *time.Time
	Type                string // "10", "20", "21", or "" for all
	TransmitterIdentity *uint16
	ShortNetworkID      *uint8
}

// TransmitterSummary aggregates the observations of one transmitter
type TransmitterSummary struct {
	TransmitterIdentity uint16    `json:"transmitter_identity"`
	ShortNetworkID      uint8     `json:"short_network_id"`
	FirstSeen           time.Time `json:"first_seen"`
	LastSeen            time.Time `json:"last_seen"`
	ObservationCount    int       `json:"observation_count"`
}

// ObservationStats represents database statistics
type ObservationStats struct {
	TotalObservations int       `json:"total_observations"`
	TotalType10       int       `json:"total_type10"`
	TotalType20       int       `json:"total_type20"`
	TotalType21       int       `json:"total_type21"`
	LastCleanup       time.Time `json:"last_cleanup"`
}

// GetObservations retrieves observations newest first
func (s *ObservationStore) GetObservations(query ObservationQuery) ([]firmware.Observation, error) {
	var args []interface{}

	sqlQuery := `
		SELECT id, timestamp, firmware, plcf_type, transmitter_identity,
			   short_network_id, receiver_identity, stf_time
		FROM observations
		WHERE 1=1
	`

	if query.Since != nil {
		sqlQuery += " AND timestamp >= ?"
		args = append(args, query.Since.UTC())
	}
	if query.Until != nil {
		sqlQuery += " AND timestamp <= ?"
		args = append(args, query.Until.UTC())
	}
	if query.Type != "" {
		sqlQuery += " AND plcf_type = ?"
		args = append(args, query.Type)
	}
	if query.TransmitterIdentity != nil {
		sqlQuery += " AND transmitter_identity = ?"
		args = append(args, *query.TransmitterIdentity)
	}
	if query.ShortNetworkID != nil {
		sqlQuery += " AND short_network_id = ?"
		args = append(args, *query.ShortNetworkID)
	}

	sqlQuery += " ORDER BY timestamp DESC, id DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []firmware.Observation
	for rows.Next() {
		var (
			obs firmware.Observation
			rx  sql.NullInt64
		)
		err := rows.Scan(
			&obs.ID,
			&obs.Timestamp,
			&obs.Firmware,
			&obs.Type,
			&obs.TransmitterIdentity,
			&obs.ShortNetworkID,
			&rx,
			&obs.STFTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if rx.Valid {
			v := uint16(rx.Int64)
			obs.ReceiverIdentity = &v
		}
		observations = append(observations, obs)
	}

	return observations, rows.Err()
}

// GetRecentObservations retrieves the most recent observations
func (s *ObservationStore) GetRecentObservations(limit int) ([]firmware.Observation, error) {
	return s.GetObservations(ObservationQuery{Limit: limit})
}

// GetTransmitters retrieves transmitter summaries, most recently seen first
func (s *ObservationStore) GetTransmitters(limit int) ([]TransmitterSummary, error) {
	query := `
		SELECT transmitter_identity, short_network_id, first_seen, last_seen, observation_count
		FROM transmitters
		ORDER BY last_seen DESC
	`

	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transmitters: %w", err)
	}
	defer rows.Close()

	var transmitters []TransmitterSummary
	for rows.Next() {
		var ts TransmitterSummary
		err := rows.Scan(&ts.TransmitterIdentity, &ts.ShortNetworkID, &ts.FirstSeen, &ts.LastSeen, &ts.ObservationCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transmitter: %w", err)
		}
		transmitters = append(transmitters, ts)
	}

	return transmitters, rows.Err()
}

// GetObservationStats retrieves database statistics
func (s *ObservationStore) GetObservationStats() (*ObservationStats, error) {
	var stats ObservationStats
	var lastCleanup sql.NullTime

	err := s.db.QueryRow(`
		SELECT total_observations, total_type10, total_type20, total_type21, last_cleanup
		FROM observation_stats WHERE id = 1
	`).Scan(&stats.TotalObservations, &stats.TotalType10, &stats.TotalType20, &stats.TotalType21, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get observation stats: %w", err)
	}

	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}

	return &stats, nil
}

// GetObservationCount returns the number of stored observations
func (s *ObservationStore) GetObservationCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&count)
	return count, err
}
