// Package layerloop provides a single-goroutine frame scheduler, driving a
// stack of independently updating layers at their own self-reported rates,
// while rendering all of them at one fixed target frame rate.
//
// # Architecture
//
// An [App] owns a [LayerStack], an [EventQueue] and an update [Schedule], and
// drives them against a [Backend] (the window, or an equivalent). Every frame
// runs four phases, in order:
//
//   - mutate: structural mutations queued on the [LayerStack] (push, pop,
//     manipulate, clear) are applied, then the schedule is rebuilt, keeping
//     the pending due time of every layer that survived
//   - events: the backend is polled, then every event collected since the
//     previous frame is delivered to every layer, in stack order
//   - updates: layer updates due before the render deadline are run, in due
//     time then stack order, sleeping until each is due
//   - render: after sleeping until the render deadline, every layer renders,
//     in stack order, then the backend swaps buffers
//
// The render deadline advances by the target render period every frame, from
// the later of the previous deadline and the current time.
//
// # Layers
//
// A [Layer] reports, from each update, the delay until it next wants to be
// updated. Layers are referenced by the schedule through a generation
// checked [Handle], and removing a layer from the stack lazily cancels any
// appointment it had pending.
//
// # Failures
//
// Layer callbacks may fail or panic. Failures are isolated to the callback,
// logged (rate limited, per phase and layer), and counted in [Stats]. A
// failed structural mutation discards the rest of the mutations queued for
// that frame. Logic defects, such as enqueuing a mutation while mutations are
// being applied, panic with an [*InvariantError].
//
// # Thread Safety
//
// Layer callbacks are only ever called from the goroutine driving the loop,
// via [App.Run] or [App.Step]. The following are safe to call from any
// goroutine:
//   - [App.Enqueue]
//   - the mutation methods of [LayerStack] (e.g. [LayerStack.Push])
//   - [App.SetTargetRenderPeriod] and the related setters
//   - [App.Stats]
package layerloop
