// Package jobstatus tracks the status of background jobs in a shared
// key-value store and lets operators cancel them cooperatively.
//
// Each job execution gets a uuid and a status record (queued, working,
// completed, failed or killed) that any process can read. Jobs report
// progress through a Tracker; a kill request puts the uuid on a kill list
// and takes effect at the job's next Tick or At.
//
// Quick start:
//  1. Build a Store on a Backend (see redisstore and sqlstore).
//  2. Register jobs in a Registry.
//  3. Enqueue with a Client over a Gateway (see asynqgw and redisqueue).
//  4. Run workers that hand deliveries to Runner.Perform.
package jobstatus
