package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct{ name string }

func TestContainer_RegisterResolve(t *testing.T) {
	c := NewContainer()
	c.Register(ServiceUsers, &fakeService{name: "users"})
	c.Register(ServiceHub, "not a service")

	svc, err := Resolve[*fakeService](c, ServiceUsers)
	require.NoError(t, err)
	assert.Equal(t, "users", svc.name)

	_, err = Resolve[*fakeService](c, ServiceHub)
	assert.ErrorContains(t, err, "类型不符")

	_, err = Resolve[*fakeService](c, ServiceRenders)
	assert.ErrorContains(t, err, "未注册")

	assert.True(t, c.Has(ServiceUsers))
	assert.Equal(t, []string{ServiceHub, ServiceUsers}, c.GetNames())

	c.Remove(ServiceHub)
	assert.False(t, c.Has(ServiceHub))
	c.Clear()
	assert.Empty(t, c.GetNames())
}

func TestGetContainerIsSingleton(t *testing.T) {
	assert.Same(t, GetContainer(), GetContainer())
}
