package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/nrfd/pkg/rdc"
	"github.com/dougsko/nrfd/pkg/storage"
)

const defaultObservationLimit = 50

func (d *Daemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"engine":            status,
		"radio":             d.radio.Status(),
		"websocket_clients": d.hub.Clients(),
		"storage":           d.store != nil,
	}
	if d.store != nil {
		resp["storage_dropped"] = d.store.Dropped()
	}
	c.JSON(http.StatusOK, resp)
}

func (d *Daemon) handleGetDeviceClasses(c *gin.Context) {
	names := rdc.Names()
	classes := make([]rdc.RadioDeviceClass, 0, len(names))
	for _, name := range names {
		if dc, ok := rdc.Lookup(name); ok {
			classes = append(classes, dc)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"configured":     d.engine.DeviceClass(),
		"device_classes": classes,
	})
}

func (d *Daemon) handleGetDeviceClass(c *gin.Context) {
	dc, ok := rdc.Lookup(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device class"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_class":       dc,
		"subcarrier_spacing": dc.SubcarrierSpacing(),
	})
}

func (d *Daemon) handleGetObservations(c *gin.Context) {
	query, err := parseObservationQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	observations, err := d.engine.Observations(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"observations": observations,
		"count":        len(observations),
	})
}

// parseObservationQuery reads limit, offset, type, transmitter, network and
// since. since accepts RFC3339 or unix seconds.
func parseObservationQuery(c *gin.Context) (storage.ObservationQuery, error) {
	query := storage.ObservationQuery{Limit: defaultObservationLimit}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return query, errBadParam("limit")
		}
		query.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return query, errBadParam("offset")
		}
		query.Offset = offset
	}
	switch t := c.Query("type"); t {
	case "", "10", "20", "21":
		query.Type = t
	default:
		return query, errBadParam("type")
	}
	if v := c.Query("transmitter"); v != "" {
		id, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			return query, errBadParam("transmitter")
		}
		tx := uint16(id)
		query.TransmitterIdentity = &tx
	}
	if v := c.Query("network"); v != "" {
		id, err := strconv.ParseUint(v, 0, 8)
		if err != nil {
			return query, errBadParam("network")
		}
		snid := uint8(id)
		query.ShortNetworkID = &snid
	}
	if v := c.Query("since"); v != "" {
		since, err := parseTime(v)
		if err != nil {
			return query, errBadParam("since")
		}
		query.Since = &since
	}
	return query, nil
}

func parseTime(v string) (time.Time, error) {
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	return time.Parse(time.RFC3339, v)
}

type paramError string

func (e paramError) Error() string { return "invalid " + string(e) + " parameter" }

func errBadParam(name string) error { return paramError(name) }

func (d *Daemon) handleCleanupObservations(c *gin.Context) {
	if d.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "observation storage disabled"})
		return
	}
	if err := d.store.CleanupOldObservations(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	count, err := d.store.GetObservationCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

func (d *Daemon) handleGetTransmitters(c *gin.Context) {
	if d.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "observation storage disabled"})
		return
	}

	limit := defaultObservationLimit
	if v := c.Query("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errBadParam("limit").Error()})
			return
		}
		limit = l
	}

	transmitters, err := d.store.GetTransmitters(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transmitters": transmitters,
		"count":        len(transmitters),
	})
}

func (d *Daemon) handleGetObservationStats(c *gin.Context) {
	if d.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "observation storage disabled"})
		return
	}
	stats, err := d.store.GetObservationStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type pccRequest struct {
	Type1 string `json:"type1"`
	Type2 string `json:"type2"`
}

// handleInjectPCC accepts either header alone or both.
func (d *Daemon) handleInjectPCC(c *gin.Context) {
	var req pccRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type1 == "" && req.Type2 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type1 or type2 is required"})
		return
	}

	type1, err := decodeHeader("type1", req.Type1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	type2, err := decodeHeader("type2", req.Type2)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := d.socketClient.InjectPCC(type1, type2); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func decodeHeader(name, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s hex: %w", name, err)
	}
	return b, nil
}

func (d *Daemon) handleScan(c *gin.Context) {
	scan, err := d.socketClient.Scan()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, scan)
}
