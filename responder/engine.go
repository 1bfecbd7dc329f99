package responder

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/objectdb"
	"github.com/ardnew/mtpresponder/pkg"
	"github.com/ardnew/mtpresponder/storage"
)

// cancelledNoResponse is an internal sentinel the dispatch table's
// handlers return to signal a host-initiated cancel: the loop drops the
// response entirely instead of writing one (spec §4.D step 4).
const cancelledNoResponse = mtp.ResponseCode(0)

// freeSpaceInObjects is the literal GetStorageInfo field value the
// original responder reports regardless of actual object count.
const freeSpaceInObjects = 1 << 30

// Config holds the responder's identity strings, reported verbatim in
// GetDeviceInfo (FriendlyName is the initial DEVICE_FRIENDLY_NAME device
// property value). Fields default to the teacher's
// DeviceBuilder-options style: plain struct fields, no config file.
type Config struct {
	Manufacturer  string
	Model         string
	DeviceVersion string
	Serial        string
	FriendlyName  string
}

func (c *Config) applyDefaults() {
	if c.Serial == "" {
		c.Serial = uuid.NewString()
	}
	if c.FriendlyName == "" {
		c.FriendlyName = c.Model
	}
}

// operation bundles one dispatch-table entry: the handler, whether the
// engine must read a Data-in container before calling it, and whether
// the session must be open (spec §4.D, SPEC_FULL.md §6.D).
type operation struct {
	fn              func(e *Engine, ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32)
	dataIn          bool
	sessionRequired bool
}

// Engine is the transaction loop: it owns the codec and transport, the
// session/send/edit state machines, and dispatches to the operation
// handlers in handlers_*.go. Not safe for concurrent Run calls; a single
// mutex serializes transaction processing against asynchronous event
// emission (spec §5).
type Engine struct {
	codec     *mtp.Codec
	transport mtp.Transport
	db        *objectdb.Database
	storages  *storage.Registry
	config    Config
	metrics   *Metrics

	ops map[uint16]operation

	mu              sync.Mutex
	session         Session
	send            SendState
	edits           map[mtp.ObjectHandle]*EditSession
	deviceProps     map[uint16]string
	lastTransaction uint32
	runCtx          context.Context

	// pendingMu guards pendingEvents: events queued by emitEvent when
	// e.mu is already held by the in-flight transaction that triggered
	// them (a lazy scan, a cascade delete, an edit commit — all invoked
	// synchronously from inside a handler). processTransaction flushes
	// this queue once it releases e.mu.
	pendingMu     sync.Mutex
	pendingEvents []pendingEvent
}

// pendingEvent is one queued MTP event awaiting a safe point to write.
type pendingEvent struct {
	code  uint16
	param uint32
}

// NewEngine constructs an Engine ready for Run. metrics may be nil.
func NewEngine(codec *mtp.Codec, transport mtp.Transport, db *objectdb.Database, storages *storage.Registry, config Config, metrics *Metrics) *Engine {
	config.applyDefaults()
	e := &Engine{
		codec:     codec,
		transport: transport,
		db:        db,
		storages:  storages,
		config:    config,
		metrics:   metrics,
		edits:     make(map[mtp.ObjectHandle]*EditSession),
		deviceProps: map[uint16]string{
			mtp.DevicePropFriendlyName:         config.FriendlyName,
			mtp.DevicePropSessionInitiatorInfo: "",
		},
		runCtx: context.Background(),
	}
	e.ops = e.buildOperations()
	return e
}

func (e *Engine) buildOperations() map[uint16]operation {
	always := false
	required := true
	return map[uint16]operation{
		mtp.OpGetDeviceInfo:           {fn: (*Engine).opGetDeviceInfo, sessionRequired: always},
		mtp.OpOpenSession:             {fn: (*Engine).opOpenSession, sessionRequired: always},
		mtp.OpCloseSession:            {fn: (*Engine).opCloseSession, sessionRequired: required},
		mtp.OpGetStorageIDs:           {fn: (*Engine).opGetStorageIDs, sessionRequired: required},
		mtp.OpGetStorageInfo:          {fn: (*Engine).opGetStorageInfo, sessionRequired: required},
		mtp.OpGetNumObjects:           {fn: (*Engine).opGetNumObjects, sessionRequired: required},
		mtp.OpGetObjectHandles:        {fn: (*Engine).opGetObjectHandles, sessionRequired: required},
		mtp.OpGetObjectInfo:           {fn: (*Engine).opGetObjectInfo, sessionRequired: required},
		mtp.OpGetObject:               {fn: (*Engine).opGetObject, sessionRequired: required},
		mtp.OpGetThumb:                {fn: (*Engine).opGetThumb, sessionRequired: required},
		mtp.OpDeleteObject:            {fn: (*Engine).opDeleteObject, sessionRequired: required},
		mtp.OpSendObjectInfo:          {fn: (*Engine).opSendObjectInfo, dataIn: true, sessionRequired: required},
		mtp.OpSendObject:              {fn: (*Engine).opSendObject, sessionRequired: required},
		mtp.OpGetDevicePropDesc:       {fn: (*Engine).opGetDevicePropDesc, sessionRequired: required},
		mtp.OpGetDevicePropValue:      {fn: (*Engine).opGetDevicePropValue, sessionRequired: required},
		mtp.OpSetDevicePropValue:      {fn: (*Engine).opSetDevicePropValue, dataIn: true, sessionRequired: required},
		mtp.OpResetDevicePropValue:    {fn: (*Engine).opResetDevicePropValue, sessionRequired: required},
		mtp.OpMoveObject:              {fn: (*Engine).opMoveObject, sessionRequired: required},
		mtp.OpGetPartialObject:        {fn: (*Engine).opGetPartialObject, sessionRequired: required},
		mtp.OpGetObjectPropsSupported: {fn: (*Engine).opGetObjectPropsSupported, sessionRequired: required},
		mtp.OpGetObjectPropDesc:       {fn: (*Engine).opGetObjectPropDesc, sessionRequired: required},
		mtp.OpGetObjectPropValue:      {fn: (*Engine).opGetObjectPropValue, sessionRequired: required},
		mtp.OpSetObjectPropValue:      {fn: (*Engine).opSetObjectPropValue, dataIn: true, sessionRequired: required},
		mtp.OpGetObjectPropList:       {fn: (*Engine).opGetObjectPropList, sessionRequired: required},
		mtp.OpGetObjectReferences:     {fn: (*Engine).opGetObjectReferences, sessionRequired: required},
		mtp.OpSetObjectReferences:     {fn: (*Engine).opSetObjectReferences, dataIn: true, sessionRequired: required},
		mtp.OpGetPartialObject64:      {fn: (*Engine).opGetPartialObject64, sessionRequired: required},
		mtp.OpSendPartialObject:       {fn: (*Engine).opSendPartialObject, sessionRequired: required},
		mtp.OpTruncateObject:          {fn: (*Engine).opTruncateObject, sessionRequired: required},
		mtp.OpBeginEditObject:         {fn: (*Engine).opBeginEditObject, sessionRequired: required},
		mtp.OpEndEditObject:           {fn: (*Engine).opEndEditObject, sessionRequired: required},
	}
}

// Run drives the transaction loop until ctx is cancelled or the
// transport collapses. On return, all open edits are committed and the
// session is closed (spec §4.D shutdown).
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	defer e.shutdown()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := e.codec.ReadRequest(ctx, e.transport)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			pkg.LogWarn(pkg.ComponentEngine, "read request failed", "err", err)
			continue
		}

		e.processTransaction(ctx, &req)
	}
}

// processTransaction runs one (Request, optional Data, Response) cycle
// under the engine's mutex so no event write can interleave with it.
func (e *Engine) processTransaction(ctx context.Context, req *mtp.Request) {
	e.mu.Lock()
	defer e.flushPendingEvents()
	defer e.mu.Unlock()

	e.lastTransaction = req.Transaction
	pkg.LogDebug(pkg.ComponentEngine, "dispatch",
		"op", mtp.OpNames[req.Code], "tx", req.Transaction)

	if !e.send.Idle() && req.Code != mtp.OpSendObject {
		e.send.Clear()
	}

	op, ok := e.ops[req.Code]
	if !ok {
		e.respond(ctx, req, mtp.RC_OperationNotSupported)
		return
	}

	if op.sessionRequired {
		if rc := e.session.checkSessionRequired(req.Code); rc != nil {
			e.respond(ctx, req, *rc)
			return
		}
	}

	if op.dataIn {
		if err := e.codec.ReadData(ctx, e.transport); err != nil {
			pkg.LogWarn(pkg.ComponentEngine, "data-in read failed", "op", mtp.OpNames[req.Code], "err", err)
			e.respond(ctx, req, mtp.RC_GeneralError)
			return
		}
		e.metrics.addBytesIn(e.codec.Remaining())
	}

	e.codec.BeginWrite()
	code, params := op.fn(e, ctx, req)

	if code == cancelledNoResponse {
		pkg.LogDebug(pkg.ComponentEngine, "transaction cancelled", "tx", req.Transaction)
		return
	}

	if n := e.codec.Written(); n > 0 {
		if err := e.codec.WriteData(ctx, e.transport, req.Code, req.Transaction); err != nil {
			pkg.LogWarn(pkg.ComponentEngine, "data-out write failed", "err", err)
			return
		}
		e.metrics.addBytesOut(n)
	}

	e.respond(ctx, req, code, params...)
}

func (e *Engine) respond(ctx context.Context, req *mtp.Request, code mtp.ResponseCode, params ...uint32) {
	e.metrics.recordTransaction(req.Code, code)
	if err := e.codec.WriteResponse(ctx, e.transport, code, req.Transaction, params...); err != nil {
		pkg.LogWarn(pkg.ComponentEngine, "write response failed", "err", err)
	}
}

// shutdown commits every open edit, closes the session, and drops the
// transport reference (spec §4.D).
func (e *Engine) shutdown() {
	e.mu.Lock()
	defer e.flushPendingEvents()
	defer e.mu.Unlock()
	e.commitAllEditsLocked()
	if e.session.Open {
		e.db.Watch(nil)
		e.storages.Watch(nil)
		e.session = Session{}
	}
	e.transport = nil
}

func (e *Engine) commitAllEditsLocked() {
	for h, edit := range e.edits {
		edit.Close()
		e.db.EndSend(h, true)
		e.metrics.editSessionClosed()
		delete(e.edits, h)
	}
}

func (e *Engine) deviceProp(code uint16) (string, bool) {
	v, ok := e.deviceProps[code]
	return v, ok
}

func (e *Engine) setDeviceProp(code uint16, value string) {
	e.deviceProps[code] = value
}

// ObjectAdded implements objectdb.EventSink.
func (e *Engine) ObjectAdded(h mtp.ObjectHandle) {
	e.emitEvent(mtp.EventObjectAdded, uint32(h))
}

// ObjectRemoved implements objectdb.EventSink.
func (e *Engine) ObjectRemoved(h mtp.ObjectHandle) {
	e.emitEvent(mtp.EventObjectRemoved, uint32(h))
}

// StorageAdded implements storage.AddRemoveSink.
func (e *Engine) StorageAdded(id mtp.StorageID) {
	e.emitEvent(mtp.EventStoreAdded, id)
}

// StorageRemoved implements storage.AddRemoveSink.
func (e *Engine) StorageRemoved(id mtp.StorageID) {
	e.emitEvent(mtp.EventStoreRemoved, id)
}

// emitEvent writes one MTP event, serialized against transaction
// processing by e.mu (the codec's write buffer is shared with
// WriteResponse, so the two must never run concurrently). objectdb and
// storage invoke this synchronously from inside a handler already
// holding e.mu — a lazy scan, a cascade delete, an edit commit — so a
// blocking Lock here would self-deadlock. TryLock tells the two cases
// apart: uncontended (a background fsnotify or storage hotplug event,
// no transaction in flight) writes immediately; contended (the
// in-flight transaction itself holds e.mu) queues the event for that
// transaction's processTransaction to flush once it releases e.mu.
func (e *Engine) emitEvent(code uint16, param uint32) {
	if !e.mu.TryLock() {
		e.pendingMu.Lock()
		e.pendingEvents = append(e.pendingEvents, pendingEvent{code: code, param: param})
		e.pendingMu.Unlock()
		return
	}
	defer e.mu.Unlock()
	e.writeEventLocked(code, param)
}

// writeEventLocked writes one event container. Caller must hold e.mu.
func (e *Engine) writeEventLocked(code uint16, param uint32) {
	if e.transport == nil {
		return
	}
	if err := e.codec.WriteEvent(e.runCtx, e.transport, code, e.lastTransaction, param); err != nil {
		pkg.LogWarn(pkg.ComponentEngine, "event write failed", "code", code, "err", err)
	}
}

// flushPendingEvents writes every event emitEvent queued while e.mu was
// held by the just-finished transaction. Called by processTransaction
// after it releases e.mu, so each flushed event re-takes the lock
// uncontended rather than nesting inside the transaction's own hold.
func (e *Engine) flushPendingEvents() {
	e.pendingMu.Lock()
	events := e.pendingEvents
	e.pendingEvents = nil
	e.pendingMu.Unlock()

	for _, pe := range events {
		e.emitEvent(pe.code, pe.param)
	}
}
