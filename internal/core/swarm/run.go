package swarm

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// command 外部提交给调度循环的请求
type command interface{ isCommand() }

type cmdListen struct {
	listener pkgif.Listener
	addrs    []types.Address
}

type cmdDial struct {
	id   types.DialID
	addr types.Address
}

func (cmdListen) isCommand() {}
func (cmdDial) isCommand()   {}

// message 工作 goroutine 汇报给调度循环的消息
type message interface{ isMessage() }

type msgExit struct{}

type msgIncoming struct {
	conn pkgif.Conn
}

type msgListenerDone struct {
	listener pkgif.Listener
	addrs    []types.Address
	err      error
}

type msgDialed struct {
	id   types.DialID
	addr types.Address
	conn pkgif.Conn
	err  error
}

type msgConnReady struct {
	entry *connEntry
}

type msgSetupFailed struct {
	info types.ConnInfo
	dial types.DialID
	err  error
}

type msgStream struct {
	conn   types.ConnID
	stream pkgif.MuxedStream
	// opened 出站流在打开前已计数
	opened bool
}

type msgStreamFailed struct {
	info types.ConnInfo
	dial types.DialID
	err  error
}

type msgUpgraded struct {
	info types.ConnInfo
	dial types.DialID
	out  pkgif.UpgradeOutput
	err  error
}

type msgTaskDone struct {
	task *taskEntry
	err  error
}

type msgAcceptDone struct {
	conn types.ConnID
	err  error
}

type msgLinger struct {
	conn types.ConnID
	gen  uint64
}

func (msgExit) isMessage()         {}
func (msgIncoming) isMessage()     {}
func (msgListenerDone) isMessage() {}
func (msgDialed) isMessage()       {}
func (msgConnReady) isMessage()    {}
func (msgSetupFailed) isMessage()  {}
func (msgStream) isMessage()       {}
func (msgStreamFailed) isMessage() {}
func (msgUpgraded) isMessage()     {}
func (msgTaskDone) isMessage()     {}
func (msgAcceptDone) isMessage()   {}
func (msgLinger) isMessage()       {}

// connEntry 调度循环持有的连接状态
type connEntry struct {
	info types.ConnInfo
	mc   pkgif.MuxedConn
	dial types.DialID

	// streams 正在协商或运行任务的流数
	streams int
	used    bool

	// idle 每次进入空闲递增，过期的等待据此失效
	idle uint64
	// gone 连接从连接表移除时关闭
	gone chan struct{}
}

// taskEntry 任务注册表条目
type taskEntry struct {
	id       uint64
	conn     types.ConnID
	protocol types.ProtocolID
	remote   types.Address
	started  time.Time
}

// loop 调度循环状态，仅由 Run 所在 goroutine 访问
type loop struct {
	s     *Swarm
	g     *errgroup.Group
	ctx   context.Context
	stop  context.CancelFunc
	inbox chan message

	live     int
	conns    map[types.ConnID]*connEntry
	tasks    map[types.ConnID][]*taskEntry
	nextTask uint64
	stopping bool
}

// Run 驱动所有监听、拨号、连接与任务
//
// 全部结束后返回 nil；监听器致命错误时关闭其余部分并返回该错误。
// ctx 取消或 Close 视为正常退出。
func (s *Swarm) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if s.isClosed() {
		return ErrSwarmClosed
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	l := &loop{
		s:     s,
		g:     g,
		ctx:   runCtx,
		stop:  cancel,
		inbox: make(chan message),
		conns: make(map[types.ConnID]*connEntry),
		tasks: make(map[types.ConnID][]*taskEntry),
	}
	logger.Debug("调度循环启动")
	l.run(gctx.Done())

	if s.events != nil {
		close(s.events)
	}
	err := g.Wait()
	logger.Debug("调度循环退出", "error", err)
	return err
}

func (l *loop) run(done <-chan struct{}) {
	closing := l.s.closing
	for {
		l.drain()
		if l.live == 0 {
			return
		}
		select {
		case m := <-l.inbox:
			l.handle(m)
		case <-l.s.wake:
		case <-done:
			done = nil
			l.shutdown()
		case <-closing:
			closing = nil
			l.shutdown()
		}
	}
}

// spawn 启动工作 goroutine，结束时向循环汇报
func (l *loop) spawn(fn func() error) {
	l.live++
	l.g.Go(func() error {
		err := fn()
		l.inbox <- msgExit{}
		return err
	})
}

func (l *loop) send(m message) {
	l.inbox <- m
}

func (l *loop) drain() {
	for _, c := range l.s.takePending() {
		switch c := c.(type) {
		case cmdListen:
			if l.stopping {
				_ = c.listener.Close()
				l.s.forgetListener(c.listener)
				continue
			}
			for _, a := range c.addrs {
				l.s.emit(Event{Type: EventListening, Addr: a})
			}
			l.spawn(func() error { return l.acceptLoop(c.listener, c.addrs) })
		case cmdDial:
			if l.stopping {
				continue
			}
			l.spawn(func() error { l.dial(c.id, c.addr); return nil })
		}
	}
}

// shutdown 关闭监听器与连接，取消任务；循环继续运行直到全部工作结束
func (l *loop) shutdown() {
	if l.stopping {
		return
	}
	l.stopping = true
	logger.Debug("调度循环开始关闭", "conns", len(l.conns), "live", l.live)
	l.s.closeListeners()
	for _, e := range l.conns {
		_ = e.mc.Close()
	}
	l.stop()
}

func (l *loop) handle(m message) {
	switch m := m.(type) {
	case msgExit:
		l.live--

	case msgListenerDone:
		l.s.forgetListener(m.listener)
		for _, a := range m.addrs {
			l.s.emit(Event{Type: EventListenerClosed, Addr: a, Err: m.err})
		}
		if m.err != nil {
			logger.Error("监听器失败", "addrs", types.AddressStrings(m.addrs), "error", m.err)
			l.shutdown()
		} else {
			logger.Debug("监听器结束", "addrs", types.AddressStrings(m.addrs))
		}

	case msgIncoming:
		if l.stopping {
			_ = m.conn.Close()
			return
		}
		l.s.emit(Event{Type: EventIncoming, Addr: m.conn.RemoteMultiaddr()})
		l.spawn(func() error { l.setupConn(m.conn, types.DirInbound, ""); return nil })

	case msgDialed:
		l.s.metrics.DialDone(m.err)
		if m.err != nil {
			derr := &DialError{ID: m.id, Addr: m.addr, Err: m.err}
			logger.Debug("拨号失败", "dial", m.id.String(), "addr", m.addr.String(), "error", m.err)
			l.s.emit(Event{Type: EventDialFailed, Addr: m.addr, Dial: m.id, Err: derr})
			return
		}
		if l.stopping {
			_ = m.conn.Close()
			return
		}
		l.s.emit(Event{Type: EventDialed, Addr: m.addr, Dial: m.id})
		l.spawn(func() error { l.setupConn(m.conn, types.DirOutbound, m.id); return nil })

	case msgSetupFailed:
		l.s.metrics.UpgradeFailed(m.info.Direction)
		l.s.emit(Event{Type: EventUpgradeFailed, Addr: m.info.Remote, Conn: m.info, Dial: m.dial, Err: m.err})

	case msgConnReady:
		l.connReady(m.entry)

	case msgStream:
		l.streamReady(m)

	case msgStreamFailed:
		l.s.metrics.UpgradeFailed(m.info.Direction)
		l.s.emit(Event{Type: EventUpgradeFailed, Addr: m.info.Remote, Conn: m.info, Dial: m.dial, Err: m.err})
		if e := l.conns[m.info.ID]; e != nil {
			l.release(e)
		}

	case msgUpgraded:
		l.upgraded(m)

	case msgTaskDone:
		l.taskDone(m)

	case msgAcceptDone:
		e := l.conns[m.conn]
		if e == nil {
			return
		}
		_ = e.mc.Close()
		delete(l.conns, m.conn)
		close(e.gone)
		l.s.metrics.ConnClosed(e.info)
		l.s.emit(Event{Type: EventConnClosed, Addr: e.info.Remote, Conn: e.info, Err: m.err})
		logger.Debug("连接已关闭", "conn", e.info.ID.String(), "remote", e.info.Remote.String())
		l.publish()

	case msgLinger:
		e := l.conns[m.conn]
		if e == nil || e.streams > 0 || e.idle != m.gen {
			return
		}
		logger.Debug("连接空闲超时，关闭连接", "conn", e.info.ID.String())
		_ = e.mc.Close()
	}
}

func (l *loop) connReady(e *connEntry) {
	if l.stopping {
		_ = e.mc.Close()
		return
	}
	e.gone = make(chan struct{})
	l.conns[e.info.ID] = e
	l.s.metrics.ConnOpened(e.info)
	l.publish()
	logger.Info("连接已建立",
		"conn", e.info.ID.String(),
		"remote", e.info.Remote.String(),
		"direction", e.info.Direction.String(),
		"transport", e.info.Transport,
		"muxer", e.info.Muxer)

	l.spawn(func() error { l.acceptStreams(e); return nil })
	if e.info.Direction == types.DirOutbound {
		e.streams++
		e.used = true
		l.spawn(func() error { l.openStream(e); return nil })
	}
}

func (l *loop) streamReady(m msgStream) {
	e := l.conns[m.conn]
	if e == nil || l.stopping {
		_ = m.stream.Reset()
		if e != nil && m.opened {
			l.release(e)
		}
		return
	}
	if !m.opened {
		if e.streams >= l.s.config.MaxInboundStreams {
			logger.Warn("入站流超过上限，重置", "conn", e.info.ID.String(), "limit", l.s.config.MaxInboundStreams)
			_ = m.stream.Reset()
			l.s.emit(Event{Type: EventUpgradeFailed, Addr: e.info.Remote, Conn: e.info, Err: ErrStreamLimit})
			return
		}
		e.streams++
		e.used = true
	}

	info, dial := e.info, e.dial
	l.spawn(func() error { l.upgradeStream(info, dial, m.stream); return nil })
}

func (l *loop) upgraded(m msgUpgraded) {
	e := l.conns[m.info.ID]
	if m.err != nil {
		// 连接可能已先一步关闭，事件仍按协商时的连接信息上报
		l.s.metrics.UpgradeFailed(m.info.Direction)
		l.s.emit(Event{Type: EventUpgradeFailed, Addr: m.info.Remote, Conn: m.info, Dial: m.dial, Err: m.err})
		if e != nil {
			l.release(e)
		}
		return
	}

	info := m.info
	remote := info.Remote
	proto := m.out.Protocol()
	l.s.emit(Event{Type: EventUpgraded, Addr: remote, Conn: info, Protocol: proto})

	task := l.s.handler.Handle(m.out, remote)
	if task == nil {
		if e != nil {
			l.release(e)
		}
		return
	}

	l.nextTask++
	t := &taskEntry{
		id:       l.nextTask,
		conn:     info.ID,
		protocol: proto,
		remote:   remote,
		started:  time.Now(),
	}
	l.tasks[info.ID] = append(l.tasks[info.ID], t)
	l.s.metrics.TaskStarted(proto)
	l.publish()

	ctx := l.ctx
	l.spawn(func() error {
		err := task(ctx)
		l.send(msgTaskDone{task: t, err: err})
		return nil
	})
}

func (l *loop) taskDone(m msgTaskDone) {
	t := m.task
	list := l.tasks[t.conn]
	for i, x := range list {
		if x == t {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(l.tasks, t.conn)
	} else {
		l.tasks[t.conn] = list
	}

	l.s.metrics.TaskDone(t.protocol, m.err)
	ev := Event{Type: EventTaskDone, Addr: t.remote, Protocol: t.protocol, Err: m.err}
	if e := l.conns[t.conn]; e != nil {
		ev.Conn = e.info
		l.release(e)
	}
	if m.err != nil && !errors.Is(m.err, context.Canceled) {
		logger.Debug("任务出错结束", "protocol", string(t.protocol), "remote", t.remote.String(), "error", m.err)
	}
	l.s.emit(ev)
	l.publish()
}

// release 流结束
//
// 连接上最后一条流结束后不立即关闭：对端可能仍在读取已发出的数据。
// 连接在对端关闭时结束，或空闲满 CloseLinger 后由本端关闭。
func (l *loop) release(e *connEntry) {
	e.streams--
	if e.streams > 0 || !e.used {
		return
	}
	e.idle++
	gen, id, gone := e.idle, e.info.ID, e.gone
	linger := l.s.config.CloseLinger
	logger.Debug("连接上的流已全部结束，等待对端关闭", "conn", id.String(), "linger", linger)

	ctx := l.ctx
	l.spawn(func() error {
		timer := time.NewTimer(linger)
		defer timer.Stop()
		select {
		case <-timer.C:
			l.send(msgLinger{conn: id, gen: gen})
		case <-gone:
		case <-ctx.Done():
		}
		return nil
	})
}

// publish 将连接表与任务注册表快照发布给外部查询
func (l *loop) publish() {
	conns := make(map[types.ConnID]types.ConnInfo, len(l.conns))
	live := make(map[types.ConnID]pkgif.MuxedConn, len(l.conns))
	for id, e := range l.conns {
		conns[id] = e.info
		live[id] = e.mc
	}
	var tasks []TaskInfo
	for _, list := range l.tasks {
		for _, t := range list {
			tasks = append(tasks, TaskInfo{
				ID:       t.id,
				Conn:     t.conn,
				Protocol: t.protocol,
				Remote:   t.remote,
				Started:  t.started,
			})
		}
	}

	l.s.mu.Lock()
	l.s.connView = conns
	l.s.liveConns = live
	l.s.taskView = tasks
	l.s.mu.Unlock()
}

// acceptLoop 接受入站连接直至监听器结束
func (l *loop) acceptLoop(ln pkgif.Listener, addrs []types.Address) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				l.send(msgListenerDone{listener: ln, addrs: addrs})
				return nil
			}
			lerr := &ListenerError{Addr: ln.Multiaddr(), Err: err}
			l.send(msgListenerDone{listener: ln, addrs: addrs, err: lerr})
			return lerr
		}
		l.send(msgIncoming{conn: c})
	}
}

func (l *loop) dial(id types.DialID, addr types.Address) {
	ctx, cancel := context.WithTimeout(l.ctx, l.s.config.DialTimeout)
	defer cancel()
	c, err := l.s.transport.Dial(ctx, addr)
	l.send(msgDialed{id: id, addr: addr, conn: c, err: err})
}
