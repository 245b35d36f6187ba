package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugmarket/rugmarket/service/provider"
)

const (
	// Provider wire form (checksummed) and the canonical lowercase form
	// the session stores.
	testAddress   = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
	testAddressLC = "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"
	altAddress    = "0x2546BcD3c84621e976D8185a91A922aE77ECEc30"
	altAddressLC  = "0x2546bcd3c84621e976d8185a91a922ae77ecec30"

	oneAndHalfWei  = "0x14d1120d7b160000" // 1.5 ETH
	twoPointOneWei = "0x1d24b2dfac520000" // 2.1 ETH
)

func newConnectedManager(t *testing.T) (*Manager, *provider.MockProvider) {
	t.Helper()

	mock := provider.NewMockProvider()
	mock.SetAccounts(testAddress)
	mock.SetChainID("0x1")
	mock.SetBalance(testAddress, oneAndHalfWei)

	mgr := NewManager(mock, 5*time.Second, nil)
	t.Cleanup(func() {
		mgr.Close()
		mock.Close()
	})

	_, err := mgr.Connect(context.Background(), WalletMetaMask)
	require.NoError(t, err)
	return mgr, mock
}

func TestManager_ConnectHappyPath(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.SetAccounts(testAddress)
	mock.SetChainID("0x1")
	mock.SetBalance(testAddress, oneAndHalfWei)

	mgr := NewManager(mock, 5*time.Second, nil)
	defer mgr.Close()

	session, err := mgr.Connect(context.Background(), WalletMetaMask)
	require.NoError(t, err)

	assert.Equal(t, StateConnected, session.State)
	assert.Equal(t, WalletMetaMask, session.WalletID)
	assert.Equal(t, testAddressLC, session.Address)
	assert.Equal(t, int64(1), session.ChainID)
	assert.Equal(t, "1.5000", session.Balance)
	assert.False(t, session.ConnectedAt.IsZero())
	assert.True(t, mgr.Connected())
	assert.Equal(t, 1, mock.RequestAccountsCalls())
}

func TestManager_ConnectUnsupportedWallet(t *testing.T) {
	mgr := NewManager(provider.NewMockProvider(), 0, nil)
	defer mgr.Close()

	for _, walletID := range []string{WalletWalletConnect, WalletCoinbase, "rainbow", ""} {
		session, err := mgr.Connect(context.Background(), walletID)
		require.Error(t, err, "wallet %q", walletID)
		assert.ErrorIs(t, err, ErrUnsupportedWallet)
		assert.Equal(t, StateDisconnected, session.State)
	}
}

func TestManager_ConnectWithoutProvider(t *testing.T) {
	mgr := NewManager(nil, 0, nil)
	defer mgr.Close()

	_, err := mgr.Connect(context.Background(), WalletMetaMask)
	assert.ErrorIs(t, err, ErrProviderNotAvailable)
}

func TestManager_ConnectUserRejected(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.SetRequestAccountsError(&provider.RequestError{Code: 4001, Message: "User rejected the request."})

	mgr := NewManager(mock, 0, nil)
	defer mgr.Close()

	session, err := mgr.Connect(context.Background(), WalletMetaMask)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserRejected)
	assert.Equal(t, StateDisconnected, session.State)
	assert.False(t, mgr.Connected())
}

func TestManager_ConnectNoAccounts(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.SetChainID("0x1")

	mgr := NewManager(mock, 0, nil)
	defer mgr.Close()

	_, err := mgr.Connect(context.Background(), WalletMetaMask)
	assert.ErrorIs(t, err, ErrNoAccounts)
	assert.Equal(t, StateDisconnected, mgr.Session().State)
}

func TestManager_ConnectProviderTimeout(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.SetAccounts(testAddress)
	mock.SetCallDelay(time.Second)

	mgr := NewManager(mock, 20*time.Millisecond, nil)
	defer mgr.Close()

	_, err := mgr.Connect(context.Background(), WalletMetaMask)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.Equal(t, StateDisconnected, mgr.Session().State)
}

func TestManager_ConnectProviderFault(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.SetRequestAccountsError(errors.New("rpc connection refused"))

	mgr := NewManager(mock, 0, nil)
	defer mgr.Close()

	_, err := mgr.Connect(context.Background(), WalletMetaMask)
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "eth_requestAccounts", provErr.Op)
}

func TestManager_DisconnectIsIdempotent(t *testing.T) {
	mgr, _ := newConnectedManager(t)

	session := mgr.Disconnect()
	assert.Equal(t, StateDisconnected, session.State)
	assert.Empty(t, session.Address)

	// A second disconnect changes nothing.
	session = mgr.Disconnect()
	assert.Equal(t, StateDisconnected, session.State)
	assert.False(t, mgr.Connected())
}

func TestManager_ReconnectReplacesSession(t *testing.T) {
	mgr, mock := newConnectedManager(t)

	mock.SetAccounts(altAddress)
	mock.SetBalance(altAddress, twoPointOneWei)

	session, err := mgr.Connect(context.Background(), WalletMetaMask)
	require.NoError(t, err)
	assert.Equal(t, altAddressLC, session.Address)
	assert.Equal(t, "2.1000", session.Balance)
}

func TestManager_RefreshAdoptsProviderState(t *testing.T) {
	mgr, mock := newConnectedManager(t)

	mock.SetAccounts(altAddress)
	mock.SetChainID("0x89")
	mock.SetBalance(altAddress, twoPointOneWei)

	session, err := mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateConnected, session.State)
	assert.Equal(t, altAddressLC, session.Address)
	assert.Equal(t, int64(137), session.ChainID)
	assert.Equal(t, "2.1000", session.Balance)
}

func TestManager_RefreshWithRevokedAccessDisconnects(t *testing.T) {
	mgr, mock := newConnectedManager(t)

	mock.SetAccounts()

	session, err := mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, session.State)
}

func TestManager_RefreshWhileDisconnectedIsNoop(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.SetAccountsError(errors.New("should not be called"))

	mgr := NewManager(mock, 0, nil)
	defer mgr.Close()

	session, err := mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDisconnected, session.State)
}

func TestManager_EmptyAccountsEventDisconnects(t *testing.T) {
	mgr, mock := newConnectedManager(t)

	mock.EmitAccountsChanged(nil)

	session := mgr.Session()
	assert.Equal(t, StateDisconnected, session.State)
	assert.Empty(t, session.Address)
}

func TestManager_AccountsChangedEventAdoptsPrimary(t *testing.T) {
	mgr, mock := newConnectedManager(t)

	mock.SetBalance(altAddress, twoPointOneWei)
	mock.EmitAccountsChanged([]string{altAddress, testAddress})

	session := mgr.Session()
	assert.Equal(t, StateConnected, session.State)
	assert.Equal(t, altAddressLC, session.Address)
	assert.Equal(t, "2.1000", session.Balance)
}

func TestManager_LowercasesProviderAddresses(t *testing.T) {
	mgr, mock := newConnectedManager(t)

	// The mock scripts the checksummed form; the session must hold the
	// lowercase form after connect, refresh, and account-change events.
	assert.Equal(t, testAddressLC, mgr.Session().Address)

	mock.SetAccounts(altAddress)
	session, err := mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, altAddressLC, session.Address)

	mock.EmitAccountsChanged([]string{testAddress})
	assert.Equal(t, testAddressLC, mgr.Session().Address)
}

func TestManager_ChainChangedEventPreservesConnection(t *testing.T) {
	mgr, mock := newConnectedManager(t)

	mock.EmitChainChanged("0xaa36a7")

	session := mgr.Session()
	assert.Equal(t, StateConnected, session.State)
	assert.Equal(t, int64(11155111), session.ChainID)
	assert.Equal(t, testAddressLC, session.Address)
}

func TestManager_EventsWhileDisconnectedAreIgnored(t *testing.T) {
	mock := provider.NewMockProvider()
	mgr := NewManager(mock, 0, nil)
	defer mgr.Close()

	mock.EmitAccountsChanged([]string{testAddress})
	mock.EmitChainChanged("0x89")

	session := mgr.Session()
	assert.Equal(t, StateDisconnected, session.State)
	assert.Empty(t, session.Address)
}

func TestManager_CloseReleasesSubscription(t *testing.T) {
	mgr, mock := newConnectedManager(t)

	mgr.Close()
	assert.Equal(t, StateDisconnected, mgr.Session().State)

	// Events after close must not resurrect the session.
	mock.EmitChainChanged("0x89")
	assert.Equal(t, StateDisconnected, mgr.Session().State)
}

func TestManager_OperationsSerialize(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.SetAccounts(testAddress)
	mock.SetChainID("0x1")
	mock.SetBalance(testAddress, oneAndHalfWei)

	mgr := NewManager(mock, 5*time.Second, nil)
	defer mgr.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 4 {
			case 0:
				_, _ = mgr.Connect(context.Background(), WalletMetaMask)
			case 1:
				mgr.Disconnect()
			case 2:
				_, _ = mgr.Refresh(context.Background())
			default:
				mock.EmitChainChanged("0x89")
			}
		}(i)
	}
	wg.Wait()

	// Whatever interleaving happened, the session must be internally
	// consistent: either fully connected or fully cleared.
	session := mgr.Session()
	switch session.State {
	case StateConnected:
		assert.Equal(t, testAddressLC, session.Address)
		assert.NotEmpty(t, session.Balance)
	case StateDisconnected:
		assert.Empty(t, session.Address)
		assert.Empty(t, session.Balance)
	default:
		t.Fatalf("session left mid-transition: %+v", session)
	}
}
