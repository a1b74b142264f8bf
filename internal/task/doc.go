// Package task 提供可取消的异步任务原语与有界 worker 池。
//
// Task 只有 pending → running → finished 三种状态，finished 同时涵盖取消与正常完成；
// 终态结果只产出一次，取消与完成竞争时先到达 finished 的一方生效。
// Pool 基于信号量限制并发，存储引擎的删除队列与编排层的异步写入都运行在其上。
package task
