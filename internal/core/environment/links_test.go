package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Link Variable Tests
// =============================================================================

func TestLinkVariables_HostAndPort(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  db:
    image: postgres
    ports:
      sql: 5432
    instances:
      db1:
        ship: vm1
  web:
    image: nginx
    requires: [db]
    instances:
      web1:
        ship: vm2
`)

	vars := env.LinkVariables("db")
	require.NotNil(t, vars)
	assert.Equal(t, "10.0.0.1", vars["DB_DB1_HOST"])
	assert.Equal(t, "5432", vars["DB_DB1_SQL_PORT"])

	// Dependents receive the variables in their container environment.
	web1 := env.Container("web1")
	assert.Equal(t, "10.0.0.1", web1.Env["DB_DB1_HOST"])
	assert.Equal(t, "5432", web1.Env["DB_DB1_SQL_PORT"])
}

func TestLinkVariables_WantsInfoReceivesVariables(t *testing.T) {
	env := mustBuild(t, `
name: demo
settings:
  order_soft_dependencies: false
services:
  metrics:
    image: statsd
    ports:
      udp: 8125/udp
    instances:
      m1:
        ship: vm1
  web:
    image: nginx
    wants_info: [metrics]
    instances:
      web1:
        ship: vm2
`)

	// Soft ordering is off, but information still flows.
	web1 := env.Container("web1")
	assert.Equal(t, "10.0.0.1", web1.Env["METRICS_M1_HOST"])
	assert.Equal(t, "8125", web1.Env["METRICS_M1_UDP_PORT"])
}

func TestLinkVariables_OwnServiceSiblings(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  zk:
    image: zookeeper
    ports:
      peer: 2888
    instances:
      zk1:
        ship: vm1
      zk2:
        ship: vm2
`)

	// Every instance sees its whole service, itself included.
	zk1 := env.Container("zk1")
	assert.Equal(t, "10.0.0.1", zk1.Env["ZK_ZK1_HOST"])
	assert.Equal(t, "10.0.0.2", zk1.Env["ZK_ZK2_HOST"])
}

func TestLinkVariables_UnexposedPortSkipped(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  db:
    image: postgres
    ports:
      sql: 5432
    instances:
      db1:
        ship: vm1
        ports:
          sql: 0
`)

	vars := env.LinkVariables("db")
	assert.Contains(t, vars, "DB_DB1_HOST")
	assert.NotContains(t, vars, "DB_DB1_SQL_PORT")
}

func TestLinkVariables_NameMapping(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  job-queue:
    image: redis
    ports:
      tcp.main: 6379
    instances:
      jq-1:
        ship: vm1
`)

	vars := env.LinkVariables("job-queue")
	assert.Contains(t, vars, "JOB_QUEUE_JQ_1_HOST")
	assert.Contains(t, vars, "JOB_QUEUE_JQ_1_TCP_MAIN_PORT")
}

func TestLinkVariables_MemoIsStable(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  db:
    image: postgres
    instances:
      db1:
        ship: vm1
`)

	first := env.LinkVariables("db")
	second := env.LinkVariables("db")
	assert.Equal(t, first, second)
}

func TestLinkVariables_UnknownService(t *testing.T) {
	env := mustBuild(t, `
name: demo
services:
  db:
    image: postgres
    instances:
      db1:
        ship: vm1
`)

	assert.Nil(t, env.LinkVariables("ghost"))
}
