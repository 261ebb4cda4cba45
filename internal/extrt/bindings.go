package extrt

import (
	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/me/exthost/internal/hostcall"
)

// install wires the host API into the VM: setTimeout/clearTimeout, the
// host.* namespace, and a console bridged to slog.
func (r *Runtime) install() error {
	if err := r.vm.Set("setTimeout", r.jsSetTimeout); err != nil {
		return err
	}
	if err := r.vm.Set("clearTimeout", r.jsClearTimeout); err != nil {
		return err
	}

	host := r.vm.NewObject()
	if err := host.Set("fetch", r.jsFetch); err != nil {
		return err
	}
	if err := host.Set("fetchStream", r.jsFetchStream); err != nil {
		return err
	}
	if err := host.Set("onEvent", r.jsOnEvent); err != nil {
		return err
	}
	if err := r.vm.Set("host", host); err != nil {
		return err
	}

	console := r.vm.NewObject()
	if err := console.Set("log", r.jsConsole("info")); err != nil {
		return err
	}
	if err := console.Set("error", r.jsConsole("error")); err != nil {
		return err
	}
	return r.vm.Set("console", console)
}

// setTimeout(fn, delayMS) -> timerID
func (r *Runtime) jsSetTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("setTimeout requires a function"))
	}
	delay := call.Argument(1).ToInteger()
	if delay < 0 {
		delay = 0
	}
	id := r.sched.ScheduleTimer(uint64(delay))
	r.timerCBs[id] = fn
	return r.vm.ToValue(id)
}

// clearTimeout(timerID)
func (r *Runtime) jsClearTimeout(call goja.FunctionCall) goja.Value {
	id := uint64(call.Argument(0).ToInteger())
	r.sched.CancelTimer(id)
	delete(r.timerCBs, id)
	return goja.Undefined()
}

// host.fetch(url, opts, cb) -> callID. cb(err, response) runs when the
// connector's outcome macrotask is popped.
func (r *Runtime) jsFetch(call goja.FunctionCall) goja.Value {
	req, cb := r.fetchArgs(call)
	callID := "call_" + uuid.New().String()[:8]
	r.callCBs[callID] = cb
	r.connector.Do(r.ctx, callID, req)
	return r.vm.ToValue(callID)
}

// host.fetchStream(url, opts, onChunk) -> callID. onChunk({sequence, data,
// final}) runs once per chunk macrotask.
func (r *Runtime) jsFetchStream(call goja.FunctionCall) goja.Value {
	req, cb := r.fetchArgs(call)
	callID := "call_" + uuid.New().String()[:8]
	r.streamCBs[callID] = cb
	r.connector.DoStream(r.ctx, callID, req)
	return r.vm.ToValue(callID)
}

// fetchArgs parses (url, opts?, cb): opts may be omitted by passing the
// callback second.
func (r *Runtime) fetchArgs(call goja.FunctionCall) (hostcall.Request, goja.Callable) {
	req := hostcall.Request{URL: call.Argument(0).String()}

	cbArg := call.Argument(1)
	if opts, ok := call.Argument(1).Export().(map[string]any); ok {
		if m, ok := opts["method"].(string); ok {
			req.Method = m
		}
		if b, ok := opts["body"].(string); ok {
			req.Body = []byte(b)
		}
		if hs, ok := opts["headers"].(map[string]any); ok {
			req.Headers = make(map[string]string, len(hs))
			for k, v := range hs {
				if s, ok := v.(string); ok {
					req.Headers[k] = s
				}
			}
		}
		cbArg = call.Argument(2)
	}

	cb, ok := goja.AssertFunction(cbArg)
	if !ok {
		panic(r.vm.NewTypeError("fetch requires a callback function"))
	}
	return req, cb
}

// host.onEvent(fn) registers the inbound-event handler; fn(eventID, payload).
func (r *Runtime) jsOnEvent(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("onEvent requires a function"))
	}
	r.eventCB = fn
	return goja.Undefined()
}

// jsConsole bridges console.log/error to structured logging.
func (r *Runtime) jsConsole(level string) func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a.Export()
		}
		if level == "error" {
			r.logger.Error("console", "args", args)
		} else {
			r.logger.Info("console", "args", args)
		}
		return goja.Undefined()
	}
}
