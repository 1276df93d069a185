// Package limiter runs tasks with a fixed bound on how many execute at once.
//
// Tasks beyond the bound wait in submission order and start as slots free.
// A task's error or panic is captured in its own Handle and never affects
// other tasks. One Limiter is shared by every code path that starts uploads,
// so the bound is global.
package limiter
