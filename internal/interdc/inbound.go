package interdc

import (
	"net/http"
	"time"

	"adaptive-replication/internal/dctype"

	"github.com/gin-gonic/gin"
)

// Register mounts the inter-DC RPC surface (spec.md §6) on r. These routes
// are only ever called by peer IDMs, never by end clients.
func (m *Manager) Register(r *gin.Engine) {
	g := r.Group("/internal")
	g.POST("/replica-location", m.handleReplicaLocation)
	g.POST("/new-replica", m.handleNewReplica)
	g.POST("/update", m.handleUpdate)
	g.GET("/read/:key", m.handleRead)
	g.POST("/evict", m.handleEvictSignal)
}

// handleReplicaLocation implements on_replica_location(K, from): call
// RM.AddDCToReplica.
func (m *Manager) handleReplicaLocation(c *gin.Context) {
	var msg replicaLocationMsg
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, simpleAckMsg{Error: err.Error()})
		return
	}
	m.RM.AddDCToReplica(msg.Key, dctype.DC(msg.From))
	c.Status(http.StatusNoContent)
}

// handleNewReplica implements on_new_replica.
func (m *Manager) handleNewReplica(c *gin.Context) {
	var msg newReplicaMsg
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, simpleAckMsg{Error: err.Error()})
		return
	}
	allDCs := make([]dctype.DC, len(msg.AllDCs))
	for i, s := range msg.AllDCs {
		allDCs[i] = dctype.DC(s)
	}
	m.RM.AcceptNewReplica(msg.Key, msg.Value, msg.Strategy, msg.Params, allDCs)
	c.JSON(http.StatusOK, simpleAckMsg{OK: true})
}

// handleUpdate implements on_update: last-writer-wins is enforced inside
// RM.AcceptUpdate, which compares against the record's last_update_ts.
func (m *Manager) handleUpdate(c *gin.Context) {
	var msg updateMsg
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, simpleAckMsg{Error: err.Error()})
		return
	}
	ts := dctype.Timestamp{Wall: time.Unix(0, msg.TSWall).UTC(), From: dctype.DC(msg.TSFrom)}
	m.RM.AcceptUpdate(msg.Key, msg.Value, msg.Params, ts)
	c.JSON(http.StatusOK, simpleAckMsg{OK: true})
}

// handleRead implements on_read, answered via VS through RM.ServeRead.
func (m *Manager) handleRead(c *gin.Context) {
	key := c.Param("key")
	val, ok := m.RM.ServeRead(key)
	if !ok {
		c.JSON(http.StatusNotFound, readResponseMsg{OK: false})
		return
	}
	c.JSON(http.StatusOK, readResponseMsg{OK: true, Value: val})
}

// handleEvictSignal implements on_evict_signal(K, from): remove from from
// the registry's dcs set for K.
func (m *Manager) handleEvictSignal(c *gin.Context) {
	var msg evictSignalMsg
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, simpleAckMsg{Error: err.Error()})
		return
	}
	m.RM.RemoveDCFromReplica(msg.Key, dctype.DC(msg.From))
	c.Status(http.StatusNoContent)
}
